package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/bizpilot/journey-engine/internal/auth"
	"github.com/bizpilot/journey-engine/internal/config"
	"github.com/bizpilot/journey-engine/internal/models"
	"github.com/bizpilot/journey-engine/internal/recommend"
	"github.com/bizpilot/journey-engine/internal/service"
	"github.com/bizpilot/journey-engine/internal/store"
)

type Server struct {
	cfg       config.Config
	service   *service.Service
	recommend *recommend.Engine
	catalog   store.CatalogStore
	progress  store.ProgressStore
}

func New(cfg config.Config, svc *service.Service, rec *recommend.Engine, catalog store.CatalogStore, progress store.ProgressStore) *Server {
	return &Server{cfg: cfg, service: svc, recommend: rec, catalog: catalog, progress: progress}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Get("/catalog/templates", s.handleListTemplates)
	r.Get("/catalog/templates/{templateID}", s.handleGetTemplate)

	r.Get("/journeys/{journeyID}", s.handleGetJourney)
	r.Get("/journeys/{journeyID}/responses", s.handleListResponses)
	r.Get("/users/{userID}/journeys", s.handleListUserJourneys)

	r.Post("/recommendations", s.handleRecommend)

	r.Group(func(r chi.Router) {
		r.Use(auth.WriteAuth(auth.Config{
			AllowDebugToken: s.cfg.AllowDebugToken,
			DebugToken:      s.cfg.DebugToken,
			JWTSecret:       s.cfg.JWTSecret,
		}))
		r.Post("/journeys", s.handleStartJourney)
		r.Post("/journeys/{journeyID}/advance", s.handleAdvance)
		r.Post("/journeys/{journeyID}/back", s.handleGoBack)
		r.Post("/journeys/{journeyID}/complete", s.handleComplete)
		r.Put("/journeys/{journeyID}/steps/{stepID}/response", s.handleSubmitResponse)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if err := s.progress.Ping(ctx); err != nil {
		status["ok"] = false
		status["db"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	filter := store.TemplateFilter{
		Category:   models.TemplateCategory(r.URL.Query().Get("category")),
		Complexity: models.TemplateComplexity(r.URL.Query().Get("complexity")),
	}
	templates, err := s.catalog.ListTemplates(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.catalog.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

type startJourneyRequest struct {
	UserID     string `json:"userId"`
	TemplateID string `json:"templateId"`
}

func (s *Server) handleStartJourney(w http.ResponseWriter, r *http.Request) {
	var req startJourneyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" || req.TemplateID == "" {
		respondError(w, http.StatusBadRequest, "userId and templateId required")
		return
	}
	p, err := s.service.StartJourney(r.Context(), req.UserID, req.TemplateID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetJourney(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}
	p, err := s.service.GetProgress(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleListUserJourneys(w http.ResponseWriter, r *http.Request) {
	journeys, err := s.service.ListUserJourneys(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, journeys)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}
	p, err := s.service.Advance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleGoBack(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}
	p, err := s.service.GoBack(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type completeRequest struct {
	MaturityAssessment json.RawMessage `json:"maturityAssessment"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	p, err := s.service.Complete(r.Context(), id, req.MaturityAssessment)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type responseRequest struct {
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}
	var req responseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.service.SubmitStepResponse(r.Context(), id, chi.URLParam(r, "stepID"), req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListResponses(w http.ResponseWriter, r *http.Request) {
	id, ok := journeyID(w, r)
	if !ok {
		return
	}
	responses, err := s.service.ListResponses(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, responses)
}

type recommendRequest struct {
	UserID  string                 `json:"userId"`
	Context models.BusinessContext `json:"context"`
	Limit   int                    `json:"limit"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "userId required")
		return
	}
	templates, err := s.recommend.Recommend(r.Context(), req.UserID, req.Context, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, templates)
}

func journeyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "journeyID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid journeyID")
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps the engine's error taxonomy onto HTTP status codes:
// unknown entity 404, invariant conflict 409, illegal-for-status 400.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, "already has an active journey for this template")
	case errors.Is(err, store.ErrInvalidState):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
