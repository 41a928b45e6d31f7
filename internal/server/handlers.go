package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aidanlsb/cstudio/internal/check"
	"github.com/aidanlsb/cstudio/internal/model"
	"github.com/aidanlsb/cstudio/internal/query"
	"github.com/aidanlsb/cstudio/internal/session"
)

type errorBody struct {
	Error string `json:"error"`
}

// SearchResponse is the body of GET /api/search.
type SearchResponse struct {
	Query   string               `json:"query"`
	Results []query.SearchResult `json:"results"`
}

// ValidateResponse is the body of POST /api/validate.
type ValidateResponse struct {
	Path   string                  `json:"path,omitempty"`
	Type   model.ContentType       `json:"type"`
	Errors []model.ValidationError `json:"errors"`
}

type rebuildOneRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := query.SearchOptions{}
	for _, t := range q["type"] {
		if t = strings.TrimSpace(t); t != "" {
			opts.Types = append(opts.Types, model.ContentType(t))
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = n
	}

	text := q.Get("q")
	results, err := s.engine().Search(text, opts)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: text, Results: results})
}

func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	t := model.ContentType(r.PathValue("type"))
	res, err := s.engine().Dependencies(t, r.PathValue("id"))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine().Analytics())
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	t := model.ContentType(r.URL.Query().Get("type"))
	if t == "" && path != "" {
		t, _ = s.session.Content().TypeOf(path)
	}
	if t == "" {
		writeError(w, http.StatusBadRequest, "type is required (or a path inside a type directory)")
		return
	}

	text, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read document: "+err.Error())
		return
	}
	findings, err := check.Document(s.engine(), text, t, path)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Path: path, Type: t, Errors: findings})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	report, err := s.session.RebuildIndex(r.Context())
	switch {
	case errors.Is(err, session.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		s.logger.Error("rebuild failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleRebuildOne(w http.ResponseWriter, r *http.Request) {
	var req rebuildOneRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	u, err := s.session.RebuildOne(req.Path)
	switch {
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, u)
	}
}

func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrEmptyQuery),
		errors.Is(err, query.ErrEmptyType),
		errors.Is(err, query.ErrEmptyID):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
