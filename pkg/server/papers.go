package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shahryar908/researchy/pkg/papers"
)

// PaperInfo is one entry in the /api/papers/list response.
type PaperInfo struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Created  string `json:"created"`
	Topic    string `json:"topic,omitempty"`
}

// PapersResponse is the JSON response for /api/papers/list.
type PapersResponse struct {
	Papers []PaperInfo `json:"papers"`
	Count  int         `json:"count"`
}

func (s *Server) handlePapersList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	files := papers.ScanDirs(s.cfg.PaperDirs...)

	// Topics come from the index when available.
	topics := make(map[string]string)
	if s.cfg.Index != nil {
		if recorded, err := s.cfg.Index.List(r.Context(), ""); err == nil {
			for _, p := range recorded {
				topics[p.Filename] = p.Topic
			}
		}
	}

	infos := make([]PaperInfo, 0, len(files))
	for _, f := range files {
		infos = append(infos, PaperInfo{
			Filename: f.Filename,
			Path:     f.Path,
			Size:     f.Size,
			Created:  f.ModTime.UTC().Format("2006-01-02T15:04:05Z"),
			Topic:    topics[f.Filename],
		})
	}

	writeJSON(w, http.StatusOK, PapersResponse{Papers: infos, Count: len(infos)})
}

func (s *Server) handlePapersDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filename := strings.TrimPrefix(r.URL.Path, "/api/papers/download/")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	path, ok := papers.FindFile(filename, s.cfg.PaperDirs...)
	if !ok && !strings.HasSuffix(filename, ".pdf") {
		filename += ".pdf"
		path, ok = papers.FindFile(filename, s.cfg.PaperDirs...)
	}
	if !ok {
		available := make([]string, 0)
		for _, f := range papers.ScanDirs(s.cfg.PaperDirs...) {
			available = append(available, f.Filename)
		}
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("File %q not found. Available files: %v", filename, available))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}
