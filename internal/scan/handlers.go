package scan

import (
	"errors"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"
)

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleListScans returns the history list, newest first
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	history := s.service.History()
	items := make([]ListItem, 0, len(history))
	for _, record := range history {
		items = append(items, NewListItem(record, s.location))
	}
	writeJSON(w, http.StatusOK, items)
}

// handleGetScan returns the detail view of one scan
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.Get(r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewDetail(record))
}

// handleFocusScan selects a scan for the detail view
func (s *Server) handleFocusScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.Focus(id); err != nil {
		s.writeLookupError(w, err)
		return
	}
	record, err := s.service.Get(id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewDetail(record))
}

// handleGetFocus returns the detail view of the focused scan
func (s *Server) handleGetFocus(w http.ResponseWriter, r *http.Request) {
	record, ok := s.service.Focused()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, NewDetail(record))
}

// handleClearFocus closes the detail view
func (s *Server) handleClearFocus(w http.ResponseWriter, r *http.Request) {
	s.service.ClearFocus()
	w.WriteHeader(http.StatusNoContent)
}

// handleScannerState reports whether the camera is scanning
func (s *Server) handleScannerState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scanner.State())
}

// handleOpenScanner starts a scanning session
func (s *Server) handleOpenScanner(w http.ResponseWriter, r *http.Request) {
	s.scanner.Open()
	writeJSON(w, http.StatusAccepted, s.scanner.State())
}

// handleCloseScanner stops the scanning session
func (s *Server) handleCloseScanner(w http.ResponseWriter, r *http.Request) {
	s.scanner.Close()
	writeJSON(w, http.StatusOK, s.scanner.State())
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "Scan not found")
		return
	}
	slog.Error("Error loading scan", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
