package api

import (
	"net/http"
	"strconv"
)

const defaultRecentLimit = 50

func (s *Server) handleDriveView(w http.ResponseWriter, r *http.Request) {
	items, breadcrumbs, err := s.drive.ViewDrive(principal(r), r.URL.Query().Get("folder_id"))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"items":       items,
		"breadcrumbs": breadcrumbs,
	})
}

func (s *Server) handleRecentView(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	items, err := s.drive.ViewRecent(principal(r), limit)
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleStarredView(w http.ResponseWriter, r *http.Request) {
	items, err := s.drive.ViewStarred(principal(r))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleSharedView(w http.ResponseWriter, r *http.Request) {
	items, err := s.drive.ViewShared(principal(r))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleTrashView(w http.ResponseWriter, r *http.Request) {
	items, err := s.drive.ViewTrash(principal(r))
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.sendError(w, http.StatusBadRequest, "query parameter q required")
		return
	}
	items, err := s.drive.Search(principal(r), query)
	if err != nil {
		s.sendDriveError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}
