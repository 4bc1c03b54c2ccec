package recommend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizpilot/journey-engine/internal/models"
	"github.com/bizpilot/journey-engine/internal/recommend"
	"github.com/bizpilot/journey-engine/internal/store"
)

func newEngine(t *testing.T) (*recommend.Engine, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore(store.DefaultCatalog()...)
	return recommend.New(mem, mem), mem
}

func completeTemplate(t *testing.T, mem *store.MemoryStore, userID, templateID string) {
	t.Helper()
	ctx := context.Background()
	p, err := mem.CreateProgress(ctx, store.ProgressInput{UserID: userID, TemplateID: templateID, TotalSteps: 1})
	require.NoError(t, err)
	now := p.StartedAt
	_, err = mem.UpdateProgress(ctx, store.ProgressUpdate{
		ID:                 p.ID,
		CurrentStepIndex:   0,
		ProgressPercentage: 100,
		Status:             models.StatusCompleted,
		CompletedAt:        &now,
	})
	require.NoError(t, err)
}

// allBlocks marks every foundation building block as configured so the gate
// does not trip.
func allBlocks() []string {
	return append([]string(nil), recommend.FoundationBlocks...)
}

func templateIDs(templates []models.Template) []string {
	ids := make([]string, len(templates))
	for i, tpl := range templates {
		ids[i] = tpl.ID
	}
	return ids
}

func TestFoundationGateReturnsOnlyOnboarding(t *testing.T) {
	engine, _ := newEngine(t)

	// No building blocks configured at all.
	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:   80,
		MaturityLevel: models.MaturityMature,
		Challenges:    []string{"poor_sales_performance"},
	}, 6)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 6)
	for _, tpl := range got {
		assert.Equal(t, models.CategoryOnboarding, tpl.Category, "template %s", tpl.ID)
	}
}

func TestFoundationGateHalfConfiguredPasses(t *testing.T) {
	engine, _ := newEngine(t)

	// 3 of 5 blocks configured is at or above the 0.5 threshold.
	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:      80,
		MaturityLevel:    models.MaturityScaling,
		ConfiguredBlocks: recommend.FoundationBlocks[:3],
	}, 6)
	require.NoError(t, err)
	categories := map[models.TemplateCategory]bool{}
	for _, tpl := range got {
		categories[tpl.Category] = true
	}
	assert.Greater(t, len(categories), 1, "gate should not restrict to onboarding")
}

func TestMaturityFilter(t *testing.T) {
	engine, _ := newEngine(t)

	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:      90,
		MaturityLevel:    models.MaturityStartup,
		ConfiguredBlocks: allBlocks(),
	}, 20)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, tpl := range got {
		assert.Equal(t, models.ComplexityBeginner, tpl.Complexity, "template %s", tpl.ID)
	}
}

func TestHealthOverrideOutranksChallenge(t *testing.T) {
	engine, mem := newEngine(t)
	completeTemplate(t, mem, "user-1", "first-customer")

	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:      30,
		Challenges:       []string{"poor_sales_performance"},
		MaturityLevel:    models.MaturityGrowing,
		ConfiguredBlocks: allBlocks(),
	}, 6)
	require.NoError(t, err)
	ids := templateIDs(got)

	salesIdx, foundationalIdx := -1, -1
	for i, id := range ids {
		if id == "sales-optimization" {
			salesIdx = i
		}
		if id == "business-foundations" && foundationalIdx == -1 {
			foundationalIdx = i
		}
	}
	require.NotEqual(t, -1, salesIdx, "challenge match must be present: %v", ids)
	require.NotEqual(t, -1, foundationalIdx, "foundational template must be present: %v", ids)
	assert.Less(t, foundationalIdx, salesIdx, "foundational templates rank ahead of the challenge match: %v", ids)
}

func TestChallengeMatchWithoutHealthOverride(t *testing.T) {
	engine, mem := newEngine(t)
	completeTemplate(t, mem, "user-1", "first-customer")

	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:      75,
		Challenges:       []string{"poor_sales_performance"},
		MaturityLevel:    models.MaturityGrowing,
		ConfiguredBlocks: allBlocks(),
	}, 6)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "sales-optimization", got[0].ID)
}

func TestRiskOutranksChallenge(t *testing.T) {
	engine, mem := newEngine(t)
	completeTemplate(t, mem, "user-1", "first-customer")

	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:      75,
		Challenges:       []string{"poor_sales_performance"},
		Risks:            []string{"cash_reserve_low"},
		MaturityLevel:    models.MaturityGrowing,
		ConfiguredBlocks: allBlocks(),
	}, 6)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, "cashflow-stability", got[0].ID)
	assert.Equal(t, "sales-optimization", got[1].ID)
}

func TestDeduplicationKeepsHighestPriority(t *testing.T) {
	engine, _ := newEngine(t)

	// Pattern and challenge both map to customer-retention; it must appear
	// once, at the pattern stage's position.
	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:      75,
		Challenges:       []string{"high_customer_churn"},
		Patterns:         []string{"repeat_purchase_decline"},
		MaturityLevel:    models.MaturityGrowing,
		ConfiguredBlocks: allBlocks(),
	}, 10)
	require.NoError(t, err)
	count := 0
	for _, tpl := range got {
		if tpl.ID == "customer-retention" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, "customer-retention", got[0].ID)
}

func TestEmptyContextDegradesToMaturityCatalog(t *testing.T) {
	engine, _ := newEngine(t)

	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:      70,
		MaturityLevel:    models.MaturityGrowing,
		ConfiguredBlocks: allBlocks(),
	}, 20)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, tpl := range got {
		assert.NotEqual(t, models.ComplexityAdvanced, tpl.Complexity, "template %s", tpl.ID)
	}
}

func TestCompletedTemplatesExcluded(t *testing.T) {
	engine, mem := newEngine(t)
	completeTemplate(t, mem, "user-1", "digital-presence")

	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:      70,
		Opportunities:    []string{"untapped_online_channel"},
		MaturityLevel:    models.MaturityGrowing,
		ConfiguredBlocks: allBlocks(),
	}, 20)
	require.NoError(t, err)
	assert.NotContains(t, templateIDs(got), "digital-presence")
}

func TestUnmetPrerequisitesExcluded(t *testing.T) {
	engine, _ := newEngine(t)

	// sales-optimization requires first-customer, which this user has not
	// completed.
	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:      75,
		Challenges:       []string{"poor_sales_performance"},
		MaturityLevel:    models.MaturityGrowing,
		ConfiguredBlocks: allBlocks(),
	}, 20)
	require.NoError(t, err)
	assert.NotContains(t, templateIDs(got), "sales-optimization")
}

func TestTruncateToLimit(t *testing.T) {
	engine, _ := newEngine(t)

	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:      70,
		MaturityLevel:    models.MaturityGrowing,
		ConfiguredBlocks: allBlocks(),
	}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestZeroLimitUsesDefault(t *testing.T) {
	engine, _ := newEngine(t)

	got, err := engine.Recommend(context.Background(), "user-1", models.BusinessContext{
		HealthScore:      70,
		MaturityLevel:    models.MaturityGrowing,
		ConfiguredBlocks: allBlocks(),
	}, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), recommend.DefaultLimit)
	assert.NotEmpty(t, got)
}

func TestDeterministicOrdering(t *testing.T) {
	engine, mem := newEngine(t)
	completeTemplate(t, mem, "user-1", "first-customer")

	bctx := models.BusinessContext{
		HealthScore:      40,
		Challenges:       []string{"poor_sales_performance", "high_customer_churn"},
		Opportunities:    []string{"premium_pricing"},
		Risks:            []string{"regulatory_exposure"},
		Patterns:         []string{"founder_bottleneck"},
		MaturityLevel:    models.MaturityGrowing,
		ConfiguredBlocks: allBlocks(),
	}
	first, err := engine.Recommend(context.Background(), "user-1", bctx, 6)
	require.NoError(t, err)
	second, err := engine.Recommend(context.Background(), "user-1", bctx, 6)
	require.NoError(t, err)
	assert.Equal(t, templateIDs(first), templateIDs(second))
}
