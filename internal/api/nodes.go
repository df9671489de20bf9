package api

import (
	"encoding/json"
	"net/http"

	"github.com/arjunkorath02/DigiData/internal/drive"
	"github.com/arjunkorath02/DigiData/internal/events"
	"github.com/arjunkorath02/DigiData/internal/identity"
)

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		ParentID string `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name required")
		return
	}

	node, err := s.drive.CreateFolder(principal(r), req.ParentID, req.Name)
	if err != nil {
		s.sendDriveError(w, err)
		return
	}

	s.persistNodes(r.Context(), node)
	s.recordActivity(r.Context(), principal(r), "create", node)
	s.publishEvent(events.EventCreate, node)
	s.sendJSON(w, http.StatusCreated, node)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.drive.GetNode(principal(r), r.PathValue("id"))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, node)
}

func (s *Server) handleNodePath(w http.ResponseWriter, r *http.Request) {
	// Visibility check first; ResolvePath itself is principal-agnostic.
	if _, err := s.drive.GetNode(principal(r), r.PathValue("id")); err != nil {
		s.sendDriveError(w, err)
		return
	}
	path, err := s.drive.ResolvePath(r.PathValue("id"))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{"path": path})
}

// handlePatchNode applies rename, move, and star changes. Fields are
// pointers so an explicit empty parent_id means "move to root".
func (s *Server) handlePatchNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string `json:"name"`
		ParentID *string `json:"parent_id"`
		Starred  *bool   `json:"is_starred"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	who := principal(r)
	var node *drive.Node

	if req.ParentID != nil {
		moved, err := s.drive.Move(who, id, *req.ParentID)
		if err != nil {
			s.sendDriveError(w, err)
			return
		}
		node = moved
		s.persistNodes(r.Context(), moved)
		s.recordActivity(r.Context(), who, "move", moved)
		s.publishEvent(events.EventMove, moved)
	}

	if req.Name != nil {
		renamed, err := s.drive.Rename(who, id, *req.Name)
		if err != nil {
			s.sendDriveError(w, err)
			return
		}
		node = renamed
		s.persistNodes(r.Context(), renamed)
		s.recordActivity(r.Context(), who, "rename", renamed)
		s.publishEvent(events.EventRename, renamed)
	}

	if req.Starred != nil {
		starred, err := s.drive.Star(who, id, *req.Starred)
		if err != nil {
			s.sendDriveError(w, err)
			return
		}
		node = starred
		s.persistNodes(r.Context(), starred)
		s.publishEvent(events.EventStar, starred)
	}

	if node == nil {
		s.sendError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	s.sendJSON(w, http.StatusOK, node)
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

func (s *Server) handleTrash(w http.ResponseWriter, r *http.Request) {
	trashed, err := s.drive.Trash(principal(r), r.PathValue("id"))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}

	s.persistNodes(r.Context(), trashed...)
	s.recordActivity(r.Context(), principal(r), "trash", trashed[0])
	s.publishEvent(events.EventTrash, trashed[0])
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"trashed": len(trashed),
		"node":    trashed[0],
	})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	node, err := s.drive.Restore(principal(r), r.PathValue("id"))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}

	s.persistNodes(r.Context(), node)
	s.recordActivity(r.Context(), principal(r), "restore", node)
	s.publishEvent(events.EventRestore, node)
	s.sendJSON(w, http.StatusOK, node)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	purged, err := s.drive.Purge(principal(r), r.PathValue("id"))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}

	s.persistDeletes(r.Context(), purged)
	s.recordActivity(r.Context(), principal(r), "purge", purged[0])
	s.publishEvent(events.EventPurge, purged[0])

	// Blob cleanup after metadata commit. Leftover objects from a
	// failed delete are orphans, never dangling references.
	for _, n := range purged {
		if n.ContentHandle != "" {
			s.deleteBlob(r.Context(), n.ContentHandle)
		}
		if n.ThumbHandle != "" {
			s.deleteBlob(r.Context(), n.ThumbHandle)
		}
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{"purged": len(purged)})
}

// ─── Sharing ────────────────────────────────────────────────────────────────

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GranteeEmail string `json:"grantee_email"`
		GranteeID    string `json:"grantee_id"`
		Permission   string `json:"permission"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	granteeID := req.GranteeID
	if granteeID == "" && req.GranteeEmail != "" {
		u, err := s.users.GetUserByEmail(r.Context(), req.GranteeEmail)
		if err == identity.ErrUserNotFound {
			s.sendError(w, http.StatusNotFound, "grantee not found")
			return
		}
		if err != nil {
			s.sendError(w, http.StatusInternalServerError, "grantee lookup failed")
			return
		}
		granteeID = u.ID
	}
	if granteeID == "" {
		s.sendError(w, http.StatusBadRequest, "grantee required")
		return
	}

	id := r.PathValue("id")
	perm := drive.Permission(req.Permission)
	if err := s.drive.Share(principal(r), id, granteeID, perm); err != nil {
		s.sendDriveError(w, err)
		return
	}

	if s.db != nil {
		grant := drive.Grant{NodeID: id, Grantee: granteeID, Permission: perm}
		if err := s.db.SaveGrant(r.Context(), grant); err != nil {
			s.logPersistError(err)
		}
	}
	if node, err := s.drive.GetNode(principal(r), id); err == nil {
		s.recordActivity(r.Context(), principal(r), "share", node)
		s.publishEvent(events.EventShare, node)
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"node_id":    id,
		"grantee":    granteeID,
		"permission": perm,
	})
}

func (s *Server) handleUnshare(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	grantee := r.PathValue("grantee")

	if err := s.drive.Unshare(principal(r), id, grantee); err != nil {
		s.sendDriveError(w, err)
		return
	}

	if s.db != nil {
		if err := s.db.DeleteGrant(r.Context(), id, grantee); err != nil {
			s.logPersistError(err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	grants, err := s.drive.Grants(principal(r), r.PathValue("id"))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{"grants": grants})
}
