package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TemplateCategory buckets catalog templates by business purpose.
type TemplateCategory string

const (
	CategoryOnboarding   TemplateCategory = "onboarding"
	CategoryGrowth       TemplateCategory = "growth"
	CategoryOptimization TemplateCategory = "optimization"
	CategoryInnovation   TemplateCategory = "innovation"
	CategoryCompliance   TemplateCategory = "compliance"
	CategoryCustom       TemplateCategory = "custom"
)

// TemplateComplexity grades how demanding a template is for the business.
type TemplateComplexity string

const (
	ComplexityBeginner     TemplateComplexity = "beginner"
	ComplexityIntermediate TemplateComplexity = "intermediate"
	ComplexityAdvanced     TemplateComplexity = "advanced"
)

// StepKind distinguishes the flavors of step a template may contain.
type StepKind string

const (
	StepKindStep          StepKind = "step"
	StepKindTask          StepKind = "task"
	StepKindMilestone     StepKind = "milestone"
	StepKindChecklist     StepKind = "checklist"
	StepKindBuildingBlock StepKind = "building_block"
)

// RenderKind identifies the UI unit that renders a step. The engine treats it
// as an opaque tag; the lookup table lives with the presentation layer.
type RenderKind string

const (
	RenderForm      RenderKind = "form"
	RenderChecklist RenderKind = "checklist"
	RenderGuide     RenderKind = "guide"
	RenderAssess    RenderKind = "assessment"
)

// MaturityLevel is the coarse business-lifecycle bucket of the requesting user.
type MaturityLevel string

const (
	MaturityStartup MaturityLevel = "startup"
	MaturityGrowing MaturityLevel = "growing"
	MaturityScaling MaturityLevel = "scaling"
	MaturityMature  MaturityLevel = "mature"
)

// JourneyStatus is the lifecycle state of a journey instance. Creation implies
// in_progress; there is no persisted not_started state.
type JourneyStatus string

const (
	StatusInProgress JourneyStatus = "in_progress"
	StatusCompleted  JourneyStatus = "completed"
)

// Step belongs to exactly one template. OrderIndex is unique within the
// template and defines the sequence.
type Step struct {
	ID         string     `json:"id"`
	TemplateID string     `json:"templateId"`
	OrderIndex int        `json:"orderIndex"`
	Title      string     `json:"title"`
	Kind       StepKind   `json:"kind"`
	Required   bool       `json:"required"`
	RenderUnit RenderKind `json:"renderUnit"`
}

// Template is an immutable catalog definition of an ordered multi-step
// business journey. Never mutated at runtime by the engine.
type Template struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Category          TemplateCategory   `json:"category"`
	Complexity        TemplateComplexity `json:"complexity"`
	EstimatedDuration string             `json:"estimatedDuration"`
	Foundational      bool               `json:"foundational"`
	Steps             []Step             `json:"steps"`
	Prerequisites     []string           `json:"prerequisites"`
	SuccessMetrics    []string           `json:"successMetrics"`
}

// StepCount returns the number of steps, frozen into each instance at start.
func (t Template) StepCount() int { return len(t.Steps) }

// JourneyProgress is the per-user per-instance progress aggregate.
type JourneyProgress struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             string          `json:"userId"`
	TemplateID         string          `json:"templateId"`
	CurrentStepIndex   int             `json:"currentStepIndex"`
	TotalSteps         int             `json:"totalSteps"`
	ProgressPercentage int             `json:"progressPercentage"`
	Status             JourneyStatus   `json:"status"`
	StartedAt          time.Time       `json:"startedAt"`
	CompletedAt        *time.Time      `json:"completedAt,omitempty"`
	MaturityAssessment json.RawMessage `json:"maturityAssessment,omitempty"`
}

// StepResponse is the persisted payload submitted for one step of one journey
// instance. Resubmission overwrites the payload in place.
type StepResponse struct {
	JourneyID uuid.UUID       `json:"journeyId"`
	StepID    string          `json:"stepId"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// BusinessContext is the externally computed snapshot consumed by the
// recommendation engine. Supplied fresh on every request, never persisted.
type BusinessContext struct {
	HealthScore      int           `json:"healthScore"`
	Challenges       []string      `json:"challenges"`
	Opportunities    []string      `json:"opportunities"`
	Risks            []string      `json:"risks"`
	Patterns         []string      `json:"patterns"`
	MaturityLevel    MaturityLevel `json:"maturityLevel"`
	ConfiguredBlocks []string      `json:"configuredBlocks"`
}
