package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bizpilot/journey-engine/internal/models"
)

type responseKey struct {
	journeyID uuid.UUID
	stepID    string
}

// MemoryStore implements CatalogStore and ProgressStore in process. Used by
// tests and local development; mirrors the Postgres store's behavior,
// including the one-active-journey invariant.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]models.Template
	progress  map[uuid.UUID]models.JourneyProgress
	responses map[responseKey]models.StepResponse
}

func NewMemoryStore(templates ...models.Template) *MemoryStore {
	m := &MemoryStore{
		templates: map[string]models.Template{},
		progress:  map[uuid.UUID]models.JourneyProgress{},
		responses: map[responseKey]models.StepResponse{},
	}
	for _, tpl := range templates {
		m.templates[tpl.ID] = tpl
	}
	return m
}

func copyPayload(raw json.RawMessage, fallback string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(fallback)
	}
	return append(json.RawMessage(nil), raw...)
}

func (m *MemoryStore) GetTemplate(ctx context.Context, id string) (models.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[id]
	if !ok {
		return models.Template{}, ErrNotFound
	}
	return tpl, nil
}

func (m *MemoryStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]models.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var templates []models.Template
	for _, tpl := range m.templates {
		if filter.Category != "" && tpl.Category != filter.Category {
			continue
		}
		if filter.Complexity != "" && tpl.Complexity != filter.Complexity {
			continue
		}
		templates = append(templates, tpl)
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].ID < templates[j].ID
	})
	return templates, nil
}

func (m *MemoryStore) CreateProgress(ctx context.Context, in ProgressInput) (models.JourneyProgress, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.progress {
		if p.UserID == in.UserID && p.TemplateID == in.TemplateID && p.Status == models.StatusInProgress {
			return models.JourneyProgress{}, ErrConflict
		}
	}
	p := models.JourneyProgress{
		ID:               in.ID,
		UserID:           in.UserID,
		TemplateID:       in.TemplateID,
		CurrentStepIndex: 0,
		TotalSteps:       in.TotalSteps,
		Status:           models.StatusInProgress,
		StartedAt:        time.Now().UTC(),
	}
	m.progress[p.ID] = p
	return p, nil
}

func (m *MemoryStore) GetProgress(ctx context.Context, id uuid.UUID) (models.JourneyProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[id]
	if !ok {
		return models.JourneyProgress{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) UpdateProgress(ctx context.Context, in ProgressUpdate) (models.JourneyProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[in.ID]
	if !ok {
		return models.JourneyProgress{}, ErrNotFound
	}
	if p.Status != models.StatusInProgress {
		return models.JourneyProgress{}, ErrInvalidState
	}
	p.CurrentStepIndex = in.CurrentStepIndex
	p.ProgressPercentage = in.ProgressPercentage
	p.Status = in.Status
	if in.CompletedAt != nil {
		t := *in.CompletedAt
		p.CompletedAt = &t
	}
	if len(in.MaturityAssessment) > 0 {
		p.MaturityAssessment = copyPayload(in.MaturityAssessment, "{}")
	}
	m.progress[in.ID] = p
	return p, nil
}

func (m *MemoryStore) ListUserProgress(ctx context.Context, userID string) ([]models.JourneyProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.JourneyProgress
	for _, p := range m.progress {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

func (m *MemoryStore) CompletedTemplateIDs(ctx context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	var ids []string
	for _, p := range m.progress {
		if p.UserID == userID && p.Status == models.StatusCompleted && !seen[p.TemplateID] {
			seen[p.TemplateID] = true
			ids = append(ids, p.TemplateID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) UpsertResponse(ctx context.Context, in ResponseInput) (models.StepResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := responseKey{journeyID: in.JourneyID, stepID: in.StepID}
	now := time.Now().UTC()
	resp, ok := m.responses[key]
	if !ok {
		resp = models.StepResponse{
			JourneyID: in.JourneyID,
			StepID:    in.StepID,
			CreatedAt: now,
		}
	}
	resp.Payload = copyPayload(in.Payload, "{}")
	resp.UpdatedAt = now
	m.responses[key] = resp
	return resp, nil
}

func (m *MemoryStore) ListResponses(ctx context.Context, journeyID uuid.UUID) ([]models.StepResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var responses []models.StepResponse
	for key, resp := range m.responses {
		if key.journeyID == journeyID {
			responses = append(responses, resp)
		}
	}
	sort.Slice(responses, func(i, j int) bool {
		if responses[i].CreatedAt.Equal(responses[j].CreatedAt) {
			return responses[i].StepID < responses[j].StepID
		}
		return responses[i].CreatedAt.Before(responses[j].CreatedAt)
	})
	return responses, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
