package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/models"
	"github.com/dpshade/prompt-library/internal/repository"
)

// HealthStatus is the payload of GET /api/v1/health.
type HealthStatus struct {
	Status  string `json:"status"`
	State   string `json:"state"`
	Prompts int    `json:"prompts"`
	// LastPersistError is set when the latest save failed.
	LastPersistError string `json:"lastPersistError,omitempty"`
}

// FavoriteStatus is returned by the favorite toggle.
type FavoriteStatus struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

// ExportPayload is returned by GET /api/v1/export.
type ExportPayload struct {
	Format  string `json:"format"`
	Content string `json:"content"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: "ok", State: s.repo.State().String()}
	prompts, err := s.repo.GetAll()
	if err != nil {
		s.writeError(w, err)
		return
	}
	status.Prompts = len(prompts)
	if perr := s.repo.LastPersistError(); perr != nil {
		status.Status = "degraded"
		status.LastPersistError = perr.Error()
	}
	s.writeResponse(w, status, "", http.StatusOK)
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.repo.GetAll()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, prompts, "", http.StatusOK)
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.repo.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if p == nil {
		s.writeError(w, apperrors.NotFoundError("prompt "+id))
		return
	}
	s.writeResponse(w, p, "", http.StatusOK)
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var in models.NewPrompt
	if err := decodeBody(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.repo.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, p, "Prompt created", http.StatusCreated)
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var u models.PromptUpdate
	if err := decodeBody(w, r, &u); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.repo.Update(r.Context(), id, u)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if p == nil {
		s.writeError(w, apperrors.NotFoundError("prompt "+id))
		return
	}
	s.writeResponse(w, p, "Prompt updated", http.StatusOK)
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := s.repo.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !deleted {
		s.writeError(w, apperrors.NotFoundError("prompt "+id))
		return
	}
	s.writeResponse(w, map[string]string{"id": id}, "Prompt deleted", http.StatusOK)
}

// handleUsePrompt records a use and returns the updated prompt.
func (s *Server) handleUsePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.repo.MarkUsed(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.repo.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if p == nil {
		s.writeError(w, apperrors.NotFoundError("prompt "+id))
		return
	}
	s.writeResponse(w, p, "", http.StatusOK)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fav, err := s.repo.ToggleFavorite(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, FavoriteStatus{ID: id, Favorite: fav}, "", http.StatusOK)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.repo.GetRecent()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, prompts, "", http.StatusOK)
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.repo.GetFavorites()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, prompts, "", http.StatusOK)
}

// handleSearch handles GET /api/v1/search. fuzzy=true switches to fuzzy
// ranking; tag may repeat and tagExpr takes a boolean tag expression.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters, err := parseFilters(q)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var prompts []*models.Prompt
	if fuzzy, _ := strconv.ParseBool(q.Get("fuzzy")); fuzzy {
		prompts, err = s.repo.FuzzySearch(q.Get("q"), filters)
	} else {
		prompts, err = s.repo.Search(q.Get("q"), filters)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, prompts, "", http.StatusOK)
}

func parseFilters(q map[string][]string) (models.Filters, error) {
	get := func(key string) string {
		if v := q[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	filters := models.Filters{
		AIModel:     get("aiModel"),
		Application: get("application"),
	}
	if raw := get("custom"); raw != "" {
		custom, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, apperrors.ValidationError("custom must be true or false")
		}
		filters.IsCustom = &custom
	}
	for _, tag := range q["tag"] {
		for _, t := range strings.Split(tag, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filters.Tags = append(filters.Tags, t)
			}
		}
	}
	if raw := get("tagExpr"); raw != "" {
		expr, err := models.ParseTagExpression(raw)
		if err != nil {
			return filters, apperrors.ValidationError(err.Error())
		}
		filters.TagExpr = expr
	}
	return filters, nil
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.repo.GetCategories()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, categories, "", http.StatusOK)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.GetStatistics()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, stats, "", http.StatusOK)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = repository.FormatJSON
	}
	content, err := s.repo.Export(format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, ExportPayload{Format: strings.ToLower(format), Content: content}, "", http.StatusOK)
}

// handleImport takes a library document as the raw request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	strategy := q.Get("strategy")
	if strategy == "" {
		strategy = models.MergeSkip
	}
	lenient, _ := strconv.ParseBool(q.Get("lenient"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, apperrors.ValidationError("failed to read request body: "+err.Error()))
		return
	}

	result, err := s.repo.Import(r.Context(), body, strategy, repository.ImportOptions{Lenient: lenient})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, result, "Import complete", http.StatusOK)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.ValidationError("invalid request body: " + err.Error())
	}
	return nil
}
