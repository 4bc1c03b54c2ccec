package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bizpilot/journey-engine/internal/models"
)

// PGStore is the Postgres-backed catalog and progress store.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// EnsureSchema creates the journey tables and indexes if they do not exist.
// The partial unique index on (user_id, template_id) is what serializes
// concurrent StartJourney calls for the same pair.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS journey_templates (
  id text PRIMARY KEY,
  title text NOT NULL,
  description text NOT NULL DEFAULT '',
  category text NOT NULL,
  complexity text NOT NULL,
  estimated_duration text NOT NULL DEFAULT '',
  foundational boolean NOT NULL DEFAULT false,
  prerequisites jsonb NOT NULL DEFAULT '[]',
  success_metrics jsonb NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS journey_steps (
  id text PRIMARY KEY,
  template_id text NOT NULL REFERENCES journey_templates(id) ON DELETE CASCADE,
  order_index int NOT NULL,
  title text NOT NULL DEFAULT '',
  kind text NOT NULL,
  required boolean NOT NULL DEFAULT true,
  render_unit text NOT NULL DEFAULT 'form',
  UNIQUE (template_id, order_index)
);
CREATE TABLE IF NOT EXISTS journey_progress (
  id uuid PRIMARY KEY,
  user_id text NOT NULL,
  template_id text NOT NULL REFERENCES journey_templates(id),
  current_step_index int NOT NULL DEFAULT 0,
  total_steps int NOT NULL,
  progress_percentage int NOT NULL DEFAULT 0,
  status text NOT NULL,
  started_at timestamptz NOT NULL DEFAULT now(),
  completed_at timestamptz,
  maturity_assessment jsonb
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_journey
  ON journey_progress (user_id, template_id) WHERE status = 'in_progress';
CREATE INDEX IF NOT EXISTS idx_journey_progress_user
  ON journey_progress (user_id, started_at DESC);
CREATE TABLE IF NOT EXISTS step_responses (
  journey_id uuid NOT NULL REFERENCES journey_progress(id) ON DELETE CASCADE,
  step_id text NOT NULL,
  payload jsonb NOT NULL DEFAULT '{}',
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (journey_id, step_id)
);
`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (models.Template, error) {
	var (
		tpl           models.Template
		prerequisites []byte
		metrics       []byte
	)
	if err := row.Scan(
		&tpl.ID,
		&tpl.Title,
		&tpl.Description,
		&tpl.Category,
		&tpl.Complexity,
		&tpl.EstimatedDuration,
		&tpl.Foundational,
		&prerequisites,
		&metrics,
	); err != nil {
		return models.Template{}, err
	}
	if err := json.Unmarshal(prerequisites, &tpl.Prerequisites); err != nil {
		return models.Template{}, fmt.Errorf("decode prerequisites: %w", err)
	}
	if err := json.Unmarshal(metrics, &tpl.SuccessMetrics); err != nil {
		return models.Template{}, fmt.Errorf("decode success metrics: %w", err)
	}
	return tpl, nil
}

func scanProgress(row rowScanner) (models.JourneyProgress, error) {
	var (
		p           models.JourneyProgress
		completedAt sql.NullTime
		assessment  []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.TemplateID,
		&p.CurrentStepIndex,
		&p.TotalSteps,
		&p.ProgressPercentage,
		&p.Status,
		&p.StartedAt,
		&completedAt,
		&assessment,
	); err != nil {
		return models.JourneyProgress{}, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	if len(assessment) > 0 {
		p.MaturityAssessment = append(json.RawMessage(nil), assessment...)
	}
	return p, nil
}

func scanResponse(row rowScanner) (models.StepResponse, error) {
	var (
		resp    models.StepResponse
		payload []byte
	)
	if err := row.Scan(
		&resp.JourneyID,
		&resp.StepID,
		&payload,
		&resp.CreatedAt,
		&resp.UpdatedAt,
	); err != nil {
		return models.StepResponse{}, err
	}
	resp.Payload = append(json.RawMessage(nil), payload...)
	return resp, nil
}

const templateColumns = "id, title, description, category, complexity, estimated_duration, foundational, prerequisites, success_metrics"
const progressColumns = "id, user_id, template_id, current_step_index, total_steps, progress_percentage, status, started_at, completed_at, maturity_assessment"

func (s *PGStore) GetTemplate(ctx context.Context, id string) (models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM journey_templates WHERE id=$1", templateColumns)
	tpl, err := scanTemplate(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Template{}, ErrNotFound
		}
		return models.Template{}, fmt.Errorf("get template: %w", err)
	}
	steps, err := s.templateSteps(ctx, id)
	if err != nil {
		return models.Template{}, err
	}
	tpl.Steps = steps
	return tpl, nil
}

func (s *PGStore) templateSteps(ctx context.Context, templateID string) ([]models.Step, error) {
	const query = `
		SELECT id, template_id, order_index, title, kind, required, render_unit
		FROM journey_steps WHERE template_id=$1 ORDER BY order_index
	`
	rows, err := s.db.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []models.Step
	for rows.Next() {
		var st models.Step
		if err := rows.Scan(&st.ID, &st.TemplateID, &st.OrderIndex, &st.Title, &st.Kind, &st.Required, &st.RenderUnit); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

func (s *PGStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM journey_templates WHERE 1=1", templateColumns)
	args := []interface{}{}
	argPos := 1
	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argPos)
		args = append(args, filter.Category)
		argPos++
	}
	if filter.Complexity != "" {
		query += fmt.Sprintf(" AND complexity = $%d", argPos)
		args = append(args, filter.Complexity)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	for i := range templates {
		steps, err := s.templateSteps(ctx, templates[i].ID)
		if err != nil {
			return nil, err
		}
		templates[i].Steps = steps
	}
	return templates, nil
}

// UpsertTemplate writes a catalog template and its steps. Used by catalog
// seeding at startup; the engine itself never calls this at runtime.
func (s *PGStore) UpsertTemplate(ctx context.Context, tpl models.Template) error {
	prereqs, err := json.Marshal(tpl.Prerequisites)
	if err != nil {
		return fmt.Errorf("encode prerequisites: %w", err)
	}
	metrics, err := json.Marshal(tpl.SuccessMetrics)
	if err != nil {
		return fmt.Errorf("encode success metrics: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO journey_templates (id, title, description, category, complexity, estimated_duration, foundational, prerequisites, success_metrics)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
		  title = EXCLUDED.title,
		  description = EXCLUDED.description,
		  category = EXCLUDED.category,
		  complexity = EXCLUDED.complexity,
		  estimated_duration = EXCLUDED.estimated_duration,
		  foundational = EXCLUDED.foundational,
		  prerequisites = EXCLUDED.prerequisites,
		  success_metrics = EXCLUDED.success_metrics
	`
	if _, err := tx.ExecContext(ctx, upsert, tpl.ID, tpl.Title, tpl.Description, tpl.Category, tpl.Complexity, tpl.EstimatedDuration, tpl.Foundational, prereqs, metrics); err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM journey_steps WHERE template_id=$1`, tpl.ID); err != nil {
		return fmt.Errorf("clear steps: %w", err)
	}
	const insertStep = `
		INSERT INTO journey_steps (id, template_id, order_index, title, kind, required, render_unit)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	for _, st := range tpl.Steps {
		if _, err := tx.ExecContext(ctx, insertStep, st.ID, tpl.ID, st.OrderIndex, st.Title, st.Kind, st.Required, st.RenderUnit); err != nil {
			return fmt.Errorf("insert step %s: %w", st.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template: %w", err)
	}
	return nil
}

func (s *PGStore) CreateProgress(ctx context.Context, in ProgressInput) (models.JourneyProgress, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	query := fmt.Sprintf(`
		INSERT INTO journey_progress (id, user_id, template_id, current_step_index, total_steps, progress_percentage, status)
		VALUES ($1,$2,$3,0,$4,0,'in_progress')
		RETURNING %s
	`, progressColumns)
	row := s.db.QueryRowContext(ctx, query, in.ID, in.UserID, in.TemplateID, in.TotalSteps)
	p, err := scanProgress(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.JourneyProgress{}, ErrConflict
		}
		return models.JourneyProgress{}, fmt.Errorf("insert progress: %w", err)
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *PGStore) GetProgress(ctx context.Context, id uuid.UUID) (models.JourneyProgress, error) {
	query := fmt.Sprintf("SELECT %s FROM journey_progress WHERE id=$1", progressColumns)
	p, err := scanProgress(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.JourneyProgress{}, ErrNotFound
		}
		return models.JourneyProgress{}, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// UpdateProgress applies the update only while the row is still in_progress,
// so a racing Complete cannot be overwritten by a stale Advance.
func (s *PGStore) UpdateProgress(ctx context.Context, in ProgressUpdate) (models.JourneyProgress, error) {
	query := fmt.Sprintf(`
		UPDATE journey_progress
		SET current_step_index=$2,
		    progress_percentage=$3,
		    status=$4,
		    completed_at=$5,
		    maturity_assessment=COALESCE($6, maturity_assessment)
		WHERE id=$1 AND status='in_progress'
		RETURNING %s
	`, progressColumns)
	var assessment interface{}
	if len(in.MaturityAssessment) > 0 {
		assessment = []byte(in.MaturityAssessment)
	}
	row := s.db.QueryRowContext(ctx, query, in.ID, in.CurrentStepIndex, in.ProgressPercentage, in.Status, in.CompletedAt, assessment)
	p, err := scanProgress(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.JourneyProgress{}, fmt.Errorf("update progress: %w", err)
	}
	// Distinguish a missing row from one that already left in_progress.
	var status string
	probe := s.db.QueryRowContext(ctx, `SELECT status FROM journey_progress WHERE id=$1`, in.ID)
	if err := probe.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.JourneyProgress{}, ErrNotFound
		}
		return models.JourneyProgress{}, fmt.Errorf("probe progress: %w", err)
	}
	return models.JourneyProgress{}, ErrInvalidState
}

func (s *PGStore) ListUserProgress(ctx context.Context, userID string) ([]models.JourneyProgress, error) {
	query := fmt.Sprintf("SELECT %s FROM journey_progress WHERE user_id=$1 ORDER BY started_at DESC", progressColumns)
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user progress: %w", err)
	}
	defer rows.Close()

	var result []models.JourneyProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return result, nil
}

func (s *PGStore) CompletedTemplateIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `
		SELECT DISTINCT template_id FROM journey_progress
		WHERE user_id=$1 AND status='completed'
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list completed templates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan template id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template ids: %w", err)
	}
	return ids, nil
}

func (s *PGStore) UpsertResponse(ctx context.Context, in ResponseInput) (models.StepResponse, error) {
	const query = `
		INSERT INTO step_responses (journey_id, step_id, payload)
		VALUES ($1,$2,$3)
		ON CONFLICT (journey_id, step_id) DO UPDATE SET
		  payload = EXCLUDED.payload,
		  updated_at = now()
		RETURNING journey_id, step_id, payload, created_at, updated_at
	`
	row := s.db.QueryRowContext(ctx, query, in.JourneyID, in.StepID, ensureJSON(in.Payload, "{}"))
	resp, err := scanResponse(row)
	if err != nil {
		return models.StepResponse{}, fmt.Errorf("upsert response: %w", err)
	}
	return resp, nil
}

func (s *PGStore) ListResponses(ctx context.Context, journeyID uuid.UUID) ([]models.StepResponse, error) {
	const query = `
		SELECT journey_id, step_id, payload, created_at, updated_at
		FROM step_responses WHERE journey_id=$1 ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, journeyID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var responses []models.StepResponse
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses = append(responses, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return responses, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}
