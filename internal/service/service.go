package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/bizpilot/journey-engine/internal/events"
	"github.com/bizpilot/journey-engine/internal/models"
	"github.com/bizpilot/journey-engine/internal/store"
)

// Service is the journey progression engine. Every call is request-scoped:
// one store transaction, no background work. Event publishing and archival
// are best-effort side channels.
type Service struct {
	catalog   store.CatalogStore
	progress  store.ProgressStore
	publisher events.Publisher
	archiver  events.Archiver
}

func New(catalog store.CatalogStore, progress store.ProgressStore, publisher events.Publisher, archiver events.Archiver) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		catalog:   catalog,
		progress:  progress,
		publisher: publisher,
		archiver:  archiver,
	}
}

func percentage(stepIndex, totalSteps int) int {
	if totalSteps <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(stepIndex) / float64(totalSteps)))
}

// StartJourney creates an in_progress aggregate at step 0. At most one active
// journey may exist per (user, template); a second start returns ErrConflict.
func (s *Service) StartJourney(ctx context.Context, userID, templateID string) (models.JourneyProgress, error) {
	if userID == "" || templateID == "" {
		return models.JourneyProgress{}, fmt.Errorf("userId and templateId required")
	}
	tpl, err := s.catalog.GetTemplate(ctx, templateID)
	if err != nil {
		return models.JourneyProgress{}, err
	}
	if tpl.StepCount() == 0 {
		return models.JourneyProgress{}, fmt.Errorf("template %s has no steps: %w", templateID, store.ErrInvalidState)
	}
	p, err := s.progress.CreateProgress(ctx, store.ProgressInput{
		UserID:     userID,
		TemplateID: templateID,
		TotalSteps: tpl.StepCount(),
	})
	if err != nil {
		return models.JourneyProgress{}, err
	}
	s.publish(ctx, events.Event{
		Type:       events.TypeJourneyStarted,
		JourneyID:  p.ID,
		UserID:     p.UserID,
		TemplateID: p.TemplateID,
		At:         p.StartedAt,
	})
	return p, nil
}

// SubmitStepResponse upserts the response payload for one step. It never
// advances the journey; saving without advancing is a supported UI flow.
func (s *Service) SubmitStepResponse(ctx context.Context, journeyID uuid.UUID, stepID string, payload json.RawMessage) (models.StepResponse, error) {
	p, err := s.progress.GetProgress(ctx, journeyID)
	if err != nil {
		return models.StepResponse{}, err
	}
	if p.Status != models.StatusInProgress {
		return models.StepResponse{}, fmt.Errorf("journey %s is completed: %w", journeyID, store.ErrInvalidState)
	}
	tpl, err := s.catalog.GetTemplate(ctx, p.TemplateID)
	if err != nil {
		return models.StepResponse{}, err
	}
	if !stepBelongs(tpl, stepID) {
		return models.StepResponse{}, fmt.Errorf("step %s not in template %s: %w", stepID, tpl.ID, store.ErrNotFound)
	}
	return s.progress.UpsertResponse(ctx, store.ResponseInput{
		JourneyID: journeyID,
		StepID:    stepID,
		Payload:   payload,
	})
}

func stepBelongs(tpl models.Template, stepID string) bool {
	for _, st := range tpl.Steps {
		if st.ID == stepID {
			return true
		}
	}
	return false
}

// Advance moves the journey to the next step. Advancing from the last step
// routes to Complete instead.
func (s *Service) Advance(ctx context.Context, journeyID uuid.UUID) (models.JourneyProgress, error) {
	p, err := s.progress.GetProgress(ctx, journeyID)
	if err != nil {
		return models.JourneyProgress{}, err
	}
	if p.Status != models.StatusInProgress {
		return models.JourneyProgress{}, fmt.Errorf("journey %s is completed: %w", journeyID, store.ErrInvalidState)
	}
	if p.CurrentStepIndex >= p.TotalSteps-1 {
		return s.Complete(ctx, journeyID, nil)
	}
	next := p.CurrentStepIndex + 1
	return s.progress.UpdateProgress(ctx, store.ProgressUpdate{
		ID:                 journeyID,
		CurrentStepIndex:   next,
		ProgressPercentage: percentage(next, p.TotalSteps),
		Status:             models.StatusInProgress,
	})
}

// GoBack decrements the step index with a floor of zero. Back-navigation is
// not a distinct state; the journey stays in_progress.
func (s *Service) GoBack(ctx context.Context, journeyID uuid.UUID) (models.JourneyProgress, error) {
	p, err := s.progress.GetProgress(ctx, journeyID)
	if err != nil {
		return models.JourneyProgress{}, err
	}
	if p.Status != models.StatusInProgress {
		return models.JourneyProgress{}, fmt.Errorf("journey %s is completed: %w", journeyID, store.ErrInvalidState)
	}
	if p.CurrentStepIndex == 0 {
		return p, nil
	}
	prev := p.CurrentStepIndex - 1
	return s.progress.UpdateProgress(ctx, store.ProgressUpdate{
		ID:                 journeyID,
		CurrentStepIndex:   prev,
		ProgressPercentage: percentage(prev, p.TotalSteps),
		Status:             models.StatusInProgress,
	})
}

// Complete terminally closes the journey: status completed, percentage 100,
// completion timestamp, and the optional maturity assessment. After this no
// advance, goBack or response submission succeeds on the instance.
func (s *Service) Complete(ctx context.Context, journeyID uuid.UUID, maturityAssessment json.RawMessage) (models.JourneyProgress, error) {
	p, err := s.progress.GetProgress(ctx, journeyID)
	if err != nil {
		return models.JourneyProgress{}, err
	}
	if p.Status != models.StatusInProgress {
		return models.JourneyProgress{}, fmt.Errorf("journey %s is completed: %w", journeyID, store.ErrInvalidState)
	}
	now := time.Now().UTC()
	updated, err := s.progress.UpdateProgress(ctx, store.ProgressUpdate{
		ID:                 journeyID,
		CurrentStepIndex:   p.CurrentStepIndex,
		ProgressPercentage: 100,
		Status:             models.StatusCompleted,
		CompletedAt:        &now,
		MaturityAssessment: maturityAssessment,
	})
	if err != nil {
		return models.JourneyProgress{}, err
	}
	s.publish(ctx, events.Event{
		Type:       events.TypeJourneyCompleted,
		JourneyID:  updated.ID,
		UserID:     updated.UserID,
		TemplateID: updated.TemplateID,
		At:         now,
	})
	s.archive(ctx, updated)
	return updated, nil
}

// GetProgress returns the aggregate for one journey instance.
func (s *Service) GetProgress(ctx context.Context, journeyID uuid.UUID) (models.JourneyProgress, error) {
	return s.progress.GetProgress(ctx, journeyID)
}

// ListResponses returns every response submitted for the instance.
func (s *Service) ListResponses(ctx context.Context, journeyID uuid.UUID) ([]models.StepResponse, error) {
	if _, err := s.progress.GetProgress(ctx, journeyID); err != nil {
		return nil, err
	}
	return s.progress.ListResponses(ctx, journeyID)
}

// ListUserJourneys returns the user's journey history, newest first.
func (s *Service) ListUserJourneys(ctx context.Context, userID string) ([]models.JourneyProgress, error) {
	if userID == "" {
		return nil, fmt.Errorf("userId required")
	}
	return s.progress.ListUserProgress(ctx, userID)
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.Printf("[events] publish %s for journey %s failed: %v", ev.Type, ev.JourneyID, err)
	}
}

func (s *Service) archive(ctx context.Context, p models.JourneyProgress) {
	if s.archiver == nil {
		return
	}
	responses, err := s.progress.ListResponses(ctx, p.ID)
	if err != nil {
		log.Printf("[archive] load responses for journey %s failed: %v", p.ID, err)
		return
	}
	snap := events.JourneySnapshot{Progress: p, Responses: responses}
	if err := s.archiver.ArchiveJourney(ctx, snap); err != nil {
		log.Printf("[archive] journey %s failed: %v", p.ID, err)
	}
}
