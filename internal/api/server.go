// Package api provides the HTTP server and handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/arjunkorath02/DigiData/internal/config"
	"github.com/arjunkorath02/DigiData/internal/drive"
	"github.com/arjunkorath02/DigiData/internal/events"
	"github.com/arjunkorath02/DigiData/internal/identity"
	"github.com/arjunkorath02/DigiData/internal/logging"
	"github.com/arjunkorath02/DigiData/internal/persistence/postgres"
	"github.com/arjunkorath02/DigiData/internal/storage"
)

// Server is the HTTP server.
type Server struct {
	config        *config.Config
	drive         *drive.Store
	db            *postgres.Store
	blobs         storage.Backend
	users         *identity.Service
	broadcaster   *events.Broadcaster
	maxUploadSize int64
}

// NewServer creates a new server. db and broadcaster may be nil in tests.
func NewServer(
	cfg *config.Config,
	driveStore *drive.Store,
	db *postgres.Store,
	blobs storage.Backend,
	users *identity.Service,
	broadcaster *events.Broadcaster,
) *Server {
	return &Server{
		config:        cfg,
		drive:         driveStore,
		db:            db,
		blobs:         blobs,
		users:         users,
		broadcaster:   broadcaster,
		maxUploadSize: cfg.MaxUploadSize,
	}
}

// Handler returns the HTTP handler with auth, logging, and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/token", s.handleLogin)

	// Protected endpoints
	protected := http.NewServeMux()

	protected.HandleFunc("GET /api/v1/auth/me", s.handleMe)

	// Folder and file creation
	protected.HandleFunc("POST /api/v1/folders", s.handleCreateFolder)
	protected.HandleFunc("POST /api/v1/files/upload", s.handleUpload)

	// Views
	protected.HandleFunc("GET /api/v1/files", s.handleDriveView)
	protected.HandleFunc("GET /api/v1/files/recent", s.handleRecentView)
	protected.HandleFunc("GET /api/v1/files/starred", s.handleStarredView)
	protected.HandleFunc("GET /api/v1/files/shared", s.handleSharedView)
	protected.HandleFunc("GET /api/v1/files/trash", s.handleTrashView)
	protected.HandleFunc("GET /api/v1/files/search", s.handleSearch)

	// Single node
	protected.HandleFunc("GET /api/v1/files/{id}", s.handleGetNode)
	protected.HandleFunc("GET /api/v1/files/{id}/path", s.handleNodePath)
	protected.HandleFunc("GET /api/v1/files/{id}/download", s.handleDownload)
	protected.HandleFunc("GET /api/v1/files/{id}/thumbnail", s.handleThumbnail)
	protected.HandleFunc("PATCH /api/v1/files/{id}", s.handlePatchNode)
	protected.HandleFunc("PUT /api/v1/files/{id}/content", s.handleReplaceContent)

	// Lifecycle
	protected.HandleFunc("POST /api/v1/files/{id}/trash", s.handleTrash)
	protected.HandleFunc("POST /api/v1/files/{id}/restore", s.handleRestore)
	protected.HandleFunc("DELETE /api/v1/files/{id}", s.handlePurge)

	// Sharing
	protected.HandleFunc("POST /api/v1/files/{id}/share", s.handleShare)
	protected.HandleFunc("DELETE /api/v1/files/{id}/share/{grantee}", s.handleUnshare)
	protected.HandleFunc("GET /api/v1/files/{id}/shares", s.handleListShares)

	// Account
	protected.HandleFunc("GET /api/v1/usage", s.handleUsage)
	protected.HandleFunc("GET /api/v1/activity", s.handleActivity)

	// SSE
	protected.HandleFunc("GET /api/v1/events", s.handleEvents)

	mux.Handle("/api/v1/", s.users.Middleware(protected))

	return logging.Middleware(mux)
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// publishEvent publishes a node event to the broadcaster if available.
func (s *Server) publishEvent(eventType string, n *drive.Node) {
	if s.broadcaster == nil || n == nil {
		return
	}
	s.broadcaster.Publish(events.Event{
		Type:     eventType,
		NodeID:   n.ID,
		OwnerID:  n.OwnerID,
		Name:     n.Name,
		ParentID: n.ParentID,
		Size:     n.SizeBytes,
	})
}

// ─── Write-through persistence helpers ──────────────────────────────────────

// persistNodes writes updated nodes through to the database. The
// in-memory store is authoritative; a persistence failure is logged and
// repaired at next hydration, not surfaced to the client.
func (s *Server) persistNodes(ctx context.Context, nodes ...*drive.Node) {
	if s.db == nil {
		return
	}
	if err := s.db.SaveNodes(ctx, nodes...); err != nil {
		logging.Error("node write-through failed", zap.Error(err))
	}
}

func (s *Server) persistDeletes(ctx context.Context, nodes []*drive.Node) {
	if s.db == nil {
		return
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	if err := s.db.DeleteNodes(ctx, ids...); err != nil {
		logging.Error("node delete write-through failed", zap.Error(err))
	}
}

func (s *Server) logPersistError(err error) {
	logging.Error("write-through failed", zap.Error(err))
}

// deleteBlob removes a blob, logging failures. Orphaned blobs are
// acceptable; a missing object is not an error.
func (s *Server) deleteBlob(ctx context.Context, key string) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.DeleteObject(ctx, key); err != nil {
		logging.Error("blob delete failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Server) recordActivity(ctx context.Context, userID, action string, n *drive.Node) {
	if s.db == nil || n == nil {
		return
	}
	s.db.RecordActivity(ctx, userID, action, n.ID, n.Name)
}

// ─── Responses ──────────────────────────────────────────────────────────────

func (s *Server) sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
		"code":  code,
	})
}

// sendDriveError maps drive store errors onto HTTP statuses.
func (s *Server) sendDriveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, drive.ErrNotFound):
		s.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, drive.ErrNameConflict), errors.Is(err, drive.ErrSelfShare):
		s.sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, drive.ErrInvalidParent),
		errors.Is(err, drive.ErrCycleDetected),
		errors.Is(err, drive.ErrNotTrashed):
		s.sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, drive.ErrQuotaExceeded):
		s.sendError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, drive.ErrBusy):
		w.Header().Set("Retry-After", strconv.Itoa(1))
		s.sendError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logging.Error("drive operation failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, err.Error())
	}
}

// principal returns the authenticated user ID from the request context.
func principal(r *http.Request) string {
	claims := identity.GetClaims(r.Context())
	if claims == nil {
		return ""
	}
	return claims.UserID
}
