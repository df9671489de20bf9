package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/arjunkorath02/DigiData/internal/drive"
	"github.com/arjunkorath02/DigiData/internal/events"
	"github.com/arjunkorath02/DigiData/internal/logging"
	"github.com/arjunkorath02/DigiData/internal/metrics"
	"github.com/arjunkorath02/DigiData/internal/thumbs"
)

var rangeRegex = regexp.MustCompile(`bytes=(\d*)-(\d*)`)

// Only generate thumbnails for images up to this size.
const maxThumbSourceBytes = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload too large: max %d bytes", s.maxUploadSize))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	name := header.Filename
	if name == "" {
		s.sendError(w, http.StatusBadRequest, "filename required")
		return
	}
	folderID := r.FormValue("folder_id")

	mimeHint := header.Header.Get("Content-Type")
	if mimeHint == "" || mimeHint == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
			mimeHint = byExt
		}
	}

	handle := newContentHandle()
	if err := s.blobs.PutObject(r.Context(), handle, bytes.NewReader(data), int64(len(data))); err != nil {
		logging.Error("blob upload failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "storage write failed")
		return
	}

	node, err := s.drive.CreateFile(principal(r), folderID, name, handle, int64(len(data)), mimeHint)
	if err != nil {
		// Metadata commit failed; the freshly written blob is garbage.
		s.deleteBlob(r.Context(), handle)
		s.sendDriveError(w, err)
		return
	}

	metrics.RecordContentUpload(int64(len(data)))
	s.persistNodes(r.Context(), node)
	s.recordActivity(r.Context(), principal(r), "upload", node)
	s.publishEvent(events.EventCreate, node)

	if thumbs.IsImage(mimeHint, name) && len(data) <= maxThumbSourceBytes {
		go s.generateThumbnail(node.ID, handle, data)
	}

	s.sendJSON(w, http.StatusCreated, node)
}

func (s *Server) handleReplaceContent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload too large: max %d bytes", s.maxUploadSize))
		return
	}

	handle := newContentHandle()
	if err := s.blobs.PutObject(r.Context(), handle, bytes.NewReader(data), int64(len(data))); err != nil {
		logging.Error("blob upload failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "storage write failed")
		return
	}

	node, oldHandle, err := s.drive.ReplaceContent(principal(r), r.PathValue("id"), handle, int64(len(data)))
	if err != nil {
		s.deleteBlob(r.Context(), handle)
		s.sendDriveError(w, err)
		return
	}

	metrics.RecordContentUpload(int64(len(data)))
	s.persistNodes(r.Context(), node)
	s.recordActivity(r.Context(), principal(r), "update", node)
	s.publishEvent(events.EventContent, node)

	if oldHandle != "" && oldHandle != handle {
		s.deleteBlob(r.Context(), oldHandle)
	}
	if node.ThumbHandle != "" {
		s.deleteBlob(r.Context(), node.ThumbHandle)
	}
	if thumbs.IsImage(node.MimeHint, node.Name) && len(data) <= maxThumbSourceBytes {
		go s.generateThumbnail(node.ID, handle, data)
	}

	s.sendJSON(w, http.StatusOK, node)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	node, err := s.drive.GetNode(principal(r), r.PathValue("id"))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	if node.IsFolder() {
		s.sendError(w, http.StatusBadRequest, "cannot download a folder")
		return
	}

	offset, length, hasRange := parseRangeHeader(r.Header.Get("Range"), node.SizeBytes)
	rc, size, err := s.blobs.GetObject(r.Context(), node.ContentHandle, offset, lengthForRange(length, hasRange))
	if err != nil {
		logging.Error("blob read failed", zap.String("key", node.ContentHandle), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "storage read failed")
		return
	}
	defer rc.Close()

	contentType := node.MimeHint
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", node.Name))

	if hasRange {
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, node.SizeBytes))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}

	written, _ := io.Copy(w, rc)
	metrics.RecordContentDownload(written)
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	node, err := s.drive.GetNode(principal(r), r.PathValue("id"))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	if node.ThumbHandle == "" {
		s.sendError(w, http.StatusNotFound, "no thumbnail")
		return
	}

	rc, size, err := s.blobs.GetObject(r.Context(), node.ThumbHandle, 0, 0)
	if err != nil {
		s.sendError(w, http.StatusNotFound, "thumbnail unavailable")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	io.Copy(w, rc)
}

// generateThumbnail runs off the request path; failures only cost the
// thumbnail.
func (s *Server) generateThumbnail(nodeID, contentHandle string, data []byte) {
	ctx := context.Background()

	thumb, wpx, hpx, err := thumbs.Generate(data)
	if err != nil {
		logging.Debug("thumbnail generation skipped",
			zap.String("node_id", nodeID), zap.Error(err))
		return
	}

	key := thumbs.Key(contentHandle)
	if err := s.blobs.PutObject(ctx, key, bytes.NewReader(thumb), int64(len(thumb))); err != nil {
		logging.Error("thumbnail upload failed", zap.Error(err))
		return
	}

	if err := s.drive.SetThumbHandle(nodeID, key); err != nil {
		logging.Error("set thumb handle failed", zap.Error(err))
		return
	}
	if n := s.snapshotForPersist(nodeID); n != nil {
		s.persistNodes(ctx, n)
	}

	logging.Debug("thumbnail generated",
		zap.String("node_id", nodeID),
		zap.Int("width", wpx), zap.Int("height", hpx))
}

// snapshotForPersist fetches a node bypassing visibility, for internal
// write-through only.
func (s *Server) snapshotForPersist(nodeID string) *drive.Node {
	n, err := s.drive.Snapshot(nodeID)
	if err != nil {
		return nil
	}
	return n
}

func newContentHandle() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	h := hex.EncodeToString(buf)
	return h[:2] + "/" + h[2:]
}

func lengthForRange(length int64, hasRange bool) int64 {
	if !hasRange {
		return 0
	}
	return length
}

func parseRangeHeader(rangeHeader string, totalSize int64) (offset, length int64, hasRange bool) {
	if rangeHeader == "" {
		return 0, totalSize, false
	}

	matches := rangeRegex.FindStringSubmatch(rangeHeader)
	if matches == nil {
		return 0, totalSize, false
	}

	startStr, endStr := matches[1], matches[2]

	if startStr == "" && endStr != "" {
		suffix, _ := strconv.ParseInt(endStr, 10, 64)
		offset = totalSize - suffix
		if offset < 0 {
			offset = 0
		}
		length = totalSize - offset
		return offset, length, true
	}

	if startStr != "" {
		offset, _ = strconv.ParseInt(startStr, 10, 64)
	}

	if endStr != "" {
		end, _ := strconv.ParseInt(endStr, 10, 64)
		length = end - offset + 1
	} else {
		length = totalSize - offset
	}

	if offset >= totalSize || length <= 0 {
		return 0, totalSize, false
	}
	if offset+length > totalSize {
		length = totalSize - offset
	}
	return offset, length, true
}
