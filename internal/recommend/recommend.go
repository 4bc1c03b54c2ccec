// Package recommend selects and ranks catalog templates for a user from an
// externally supplied business context. It is read-only and side-effect free:
// a pure function of the catalog snapshot, the user's completed-template set,
// and the context.
package recommend

import (
	"context"
	"fmt"

	"github.com/bizpilot/journey-engine/internal/models"
	"github.com/bizpilot/journey-engine/internal/store"
)

// DefaultLimit is the recommendation list size when the caller passes none.
const DefaultLimit = 6

// foundationGateThreshold is the configured-block fraction below which the
// engine short-circuits to onboarding templates only. Deliberately an
// absolute override of every other signal; flagged to product in DESIGN.md.
const foundationGateThreshold = 0.5

// healthOverrideScore is the health score below which foundational and
// beginner templates are ranked ahead of challenge matches.
const healthOverrideScore = 50

type Engine struct {
	catalog  store.CatalogStore
	progress store.ProgressStore
}

func New(catalog store.CatalogStore, progress store.ProgressStore) *Engine {
	return &Engine{catalog: catalog, progress: progress}
}

// stage is one contribution to the fixed-priority merge. Stages are assembled
// in final precedence order rather than by mutating a shared list, so the
// tie-break rule stays auditable: pattern > risk > opportunity > health
// override > challenge > maturity base. Later prepend stages of the original
// chain deliberately outrank earlier ones.
type stage struct {
	name string
	ids  []string
}

// Recommend ranks up to limit templates for the user. It never fails on empty
// context inputs; with nothing to match it degrades to the maturity-filtered
// catalog.
func (e *Engine) Recommend(ctx context.Context, userID string, bctx models.BusinessContext, limit int) ([]models.Template, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	completed, err := e.completedSet(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := e.catalog.ListTemplates(ctx, store.TemplateFilter{})
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	byID := make(map[string]models.Template, len(catalog))
	var eligible []models.Template
	for _, tpl := range catalog {
		byID[tpl.ID] = tpl
		if isEligible(tpl, completed) {
			eligible = append(eligible, tpl)
		}
	}

	// Foundation gate: too few building blocks configured means nothing but
	// onboarding is offered, whatever else the context says.
	if foundationFraction(bctx.ConfiguredBlocks) < foundationGateThreshold {
		var onboarding []models.Template
		for _, tpl := range eligible {
			if tpl.Category == models.CategoryOnboarding {
				onboarding = append(onboarding, tpl)
			}
		}
		return truncate(onboarding, limit), nil
	}

	eligibleIDs := make(map[string]bool, len(eligible))
	var base []string
	allowed := complexitiesFor(bctx.MaturityLevel)
	for _, tpl := range eligible {
		eligibleIDs[tpl.ID] = true
		if allowed[tpl.Complexity] {
			base = append(base, tpl.ID)
		}
	}

	var health []string
	if bctx.HealthScore < healthOverrideScore {
		for _, tpl := range eligible {
			if tpl.Complexity == models.ComplexityBeginner || tpl.Foundational {
				health = append(health, tpl.ID)
			}
		}
	}

	stages := []stage{
		{"pattern", lookup(patternTemplates, bctx.Patterns, eligibleIDs)},
		{"risk", lookup(riskTemplates, bctx.Risks, eligibleIDs)},
		{"opportunity", lookup(opportunityTemplates, bctx.Opportunities, eligibleIDs)},
		{"health", health},
		{"challenge", lookup(challengeTemplates, bctx.Challenges, eligibleIDs)},
		{"maturity", base},
	}

	seen := map[string]bool{}
	var result []models.Template
	for _, st := range stages {
		for _, id := range st.ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			result = append(result, byID[id])
		}
	}
	return truncate(result, limit), nil
}

func (e *Engine) completedSet(ctx context.Context, userID string) (map[string]bool, error) {
	ids, err := e.progress.CompletedTemplateIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("completed templates: %w", err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// isEligible excludes templates the user already completed and templates
// whose prerequisites are not all completed.
func isEligible(tpl models.Template, completed map[string]bool) bool {
	if completed[tpl.ID] {
		return false
	}
	for _, prereq := range tpl.Prerequisites {
		if !completed[prereq] {
			return false
		}
	}
	return true
}

func foundationFraction(configured []string) float64 {
	if len(FoundationBlocks) == 0 {
		return 1
	}
	blocks := make(map[string]bool, len(configured))
	for _, b := range configured {
		blocks[b] = true
	}
	count := 0
	for _, b := range FoundationBlocks {
		if blocks[b] {
			count++
		}
	}
	return float64(count) / float64(len(FoundationBlocks))
}

// lookup resolves tags through a mapping table, preserving tag order, then
// table order, and dropping ids that are unknown or ineligible.
func lookup(table map[string][]string, tags []string, eligible map[string]bool) []string {
	var ids []string
	for _, tag := range tags {
		for _, id := range table[tag] {
			if eligible[id] {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func truncate(templates []models.Template, limit int) []models.Template {
	if len(templates) > limit {
		templates = templates[:limit]
	}
	return templates
}
