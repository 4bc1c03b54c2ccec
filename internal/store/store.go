package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bizpilot/journey-engine/internal/models"
)

var (
	// ErrNotFound reports an unknown template, journey or step.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a violated uniqueness invariant, such as a second
	// in_progress journey for the same (user, template) pair.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState reports an operation that is illegal for the journey's
	// current status, such as updating a completed journey.
	ErrInvalidState = errors.New("invalid state")
)

// CatalogStore is the read surface over immutable journey templates.
type CatalogStore interface {
	GetTemplate(ctx context.Context, id string) (models.Template, error)
	ListTemplates(ctx context.Context, filter TemplateFilter) ([]models.Template, error)
}

// TemplateFilter narrows ListTemplates. Zero values match everything.
type TemplateFilter struct {
	Category   models.TemplateCategory
	Complexity models.TemplateComplexity
}

// ProgressStore persists progress aggregates and step responses.
type ProgressStore interface {
	CreateProgress(ctx context.Context, in ProgressInput) (models.JourneyProgress, error)
	GetProgress(ctx context.Context, id uuid.UUID) (models.JourneyProgress, error)
	UpdateProgress(ctx context.Context, in ProgressUpdate) (models.JourneyProgress, error)
	ListUserProgress(ctx context.Context, userID string) ([]models.JourneyProgress, error)
	CompletedTemplateIDs(ctx context.Context, userID string) ([]string, error)
	UpsertResponse(ctx context.Context, in ResponseInput) (models.StepResponse, error)
	ListResponses(ctx context.Context, journeyID uuid.UUID) ([]models.StepResponse, error)
	Ping(ctx context.Context) error
}

// ProgressInput creates a new in_progress aggregate. CreateProgress fails with
// ErrConflict when the user already has an active journey for the template.
type ProgressInput struct {
	ID         uuid.UUID
	UserID     string
	TemplateID string
	TotalSteps int
}

// ProgressUpdate mutates an in_progress aggregate. UpdateProgress fails with
// ErrInvalidState when the row exists but is no longer in_progress.
type ProgressUpdate struct {
	ID                 uuid.UUID
	CurrentStepIndex   int
	ProgressPercentage int
	Status             models.JourneyStatus
	CompletedAt        *time.Time
	MaturityAssessment json.RawMessage
}

// ResponseInput upserts a step response keyed on (journey, step).
type ResponseInput struct {
	JourneyID uuid.UUID
	StepID    string
	Payload   json.RawMessage
}

func ensureJSON(raw json.RawMessage, fallback string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(fallback)
	}
	return raw
}
