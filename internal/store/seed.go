package store

import (
	"fmt"

	"github.com/bizpilot/journey-engine/internal/models"
)

func steps(templateID string, kinds []models.StepKind, titles []string) []models.Step {
	out := make([]models.Step, len(titles))
	for i, title := range titles {
		kind := models.StepKindStep
		if i < len(kinds) {
			kind = kinds[i]
		}
		render := models.RenderForm
		switch kind {
		case models.StepKindChecklist:
			render = models.RenderChecklist
		case models.StepKindMilestone:
			render = models.RenderAssess
		case models.StepKindBuildingBlock:
			render = models.RenderGuide
		}
		out[i] = models.Step{
			ID:         fmt.Sprintf("%s-%02d", templateID, i+1),
			TemplateID: templateID,
			OrderIndex: i,
			Title:      title,
			Kind:       kind,
			Required:   true,
			RenderUnit: render,
		}
	}
	return out
}

// DefaultCatalog is the built-in template set. It seeds the memory store, can
// seed Postgres at startup, and is the set the recommendation mapping tables
// refer to.
func DefaultCatalog() []models.Template {
	return []models.Template{
		{
			ID:                "business-foundations",
			Title:             "Business Foundations",
			Description:       "Set up the core building blocks of your business profile.",
			Category:          models.CategoryOnboarding,
			Complexity:        models.ComplexityBeginner,
			EstimatedDuration: "1 week",
			Foundational:      true,
			Steps: steps("business-foundations",
				[]models.StepKind{models.StepKindBuildingBlock, models.StepKindBuildingBlock, models.StepKindBuildingBlock, models.StepKindChecklist, models.StepKindMilestone},
				[]string{"Describe your business", "List products and services", "Define your customer base", "Connect finance basics", "Review your profile"}),
			SuccessMetrics: []string{"profile_completeness"},
		},
		{
			ID:                "first-customer",
			Title:             "Win Your First Customers",
			Description:       "A guided path from offer definition to the first closed sale.",
			Category:          models.CategoryOnboarding,
			Complexity:        models.ComplexityBeginner,
			EstimatedDuration: "2 weeks",
			Foundational:      true,
			Steps: steps("first-customer",
				[]models.StepKind{models.StepKindStep, models.StepKindTask, models.StepKindTask, models.StepKindMilestone},
				[]string{"Sharpen your offer", "Build a prospect list", "Run first outreach", "Close and reflect"}),
			SuccessMetrics: []string{"first_sale"},
		},
		{
			ID:                "digital-presence",
			Title:             "Establish a Digital Presence",
			Description:       "Get found online with a minimal, credible web footprint.",
			Category:          models.CategoryGrowth,
			Complexity:        models.ComplexityBeginner,
			EstimatedDuration: "1 week",
			Steps: steps("digital-presence",
				[]models.StepKind{models.StepKindTask, models.StepKindTask, models.StepKindChecklist},
				[]string{"Claim your listings", "Publish a landing page", "Verify discoverability"}),
			SuccessMetrics: []string{"online_visibility"},
		},
		{
			ID:                "sales-optimization",
			Title:             "Sales Optimization",
			Description:       "Diagnose and repair a leaking sales funnel.",
			Category:          models.CategoryGrowth,
			Complexity:        models.ComplexityIntermediate,
			EstimatedDuration: "3 weeks",
			Steps: steps("sales-optimization",
				[]models.StepKind{models.StepKindStep, models.StepKindTask, models.StepKindTask, models.StepKindTask, models.StepKindMilestone},
				[]string{"Map your funnel", "Find the drop-off", "Fix qualification", "Tighten follow-up", "Measure conversion lift"}),
			Prerequisites:  []string{"first-customer"},
			SuccessMetrics: []string{"conversion_rate", "sales_cycle_days"},
		},
		{
			ID:                "marketing-reach",
			Title:             "Expand Marketing Reach",
			Description:       "Open a second acquisition channel and measure it honestly.",
			Category:          models.CategoryGrowth,
			Complexity:        models.ComplexityIntermediate,
			EstimatedDuration: "4 weeks",
			Steps: steps("marketing-reach",
				[]models.StepKind{models.StepKindStep, models.StepKindTask, models.StepKindTask, models.StepKindMilestone},
				[]string{"Pick the next channel", "Launch a small campaign", "Instrument attribution", "Decide scale or stop"}),
			SuccessMetrics: []string{"lead_volume", "acquisition_cost"},
		},
		{
			ID:                "cashflow-stability",
			Title:             "Cash Flow Stability",
			Description:       "Build a rolling cash forecast and shorten your receivables.",
			Category:          models.CategoryOptimization,
			Complexity:        models.ComplexityIntermediate,
			EstimatedDuration: "2 weeks",
			Foundational:      true,
			Steps: steps("cashflow-stability",
				[]models.StepKind{models.StepKindStep, models.StepKindTask, models.StepKindTask, models.StepKindChecklist},
				[]string{"Build a 13-week forecast", "Chase overdue invoices", "Renegotiate payment terms", "Set cash alerts"}),
			SuccessMetrics: []string{"days_sales_outstanding", "cash_runway"},
		},
		{
			ID:                "customer-retention",
			Title:             "Customer Retention",
			Description:       "Find out why customers leave and make staying the default.",
			Category:          models.CategoryOptimization,
			Complexity:        models.ComplexityIntermediate,
			EstimatedDuration: "3 weeks",
			Steps: steps("customer-retention",
				[]models.StepKind{models.StepKindStep, models.StepKindTask, models.StepKindTask, models.StepKindMilestone},
				[]string{"Segment churned customers", "Interview five of them", "Ship one retention fix", "Track repeat rate"}),
			SuccessMetrics: []string{"churn_rate", "repeat_purchase_rate"},
		},
		{
			ID:                "pricing-review",
			Title:             "Pricing Review",
			Description:       "Re-anchor your prices to value instead of cost.",
			Category:          models.CategoryOptimization,
			Complexity:        models.ComplexityAdvanced,
			EstimatedDuration: "2 weeks",
			Steps: steps("pricing-review",
				[]models.StepKind{models.StepKindStep, models.StepKindTask, models.StepKindMilestone},
				[]string{"Benchmark competitors", "Test a price change", "Lock in the new ladder"}),
			Prerequisites:  []string{"sales-optimization"},
			SuccessMetrics: []string{"gross_margin"},
		},
		{
			ID:                "compliance-basics",
			Title:             "Compliance Basics",
			Description:       "Cover the regulatory essentials before they cover you.",
			Category:          models.CategoryCompliance,
			Complexity:        models.ComplexityBeginner,
			EstimatedDuration: "1 week",
			Steps: steps("compliance-basics",
				[]models.StepKind{models.StepKindChecklist, models.StepKindTask, models.StepKindChecklist},
				[]string{"Inventory your obligations", "Close the gaps", "Schedule annual review"}),
			SuccessMetrics: []string{"open_compliance_items"},
		},
		{
			ID:                "team-scaling",
			Title:             "Team Scaling",
			Description:       "Move from founder-does-everything to a delegating team.",
			Category:          models.CategoryGrowth,
			Complexity:        models.ComplexityAdvanced,
			EstimatedDuration: "6 weeks",
			Steps: steps("team-scaling",
				[]models.StepKind{models.StepKindStep, models.StepKindTask, models.StepKindTask, models.StepKindTask, models.StepKindMilestone},
				[]string{"Map founder dependencies", "Write the first three roles", "Hire or delegate", "Install a weekly cadence", "Review what broke"}),
			SuccessMetrics: []string{"founder_hours_delegated"},
		},
		{
			ID:                "process-automation",
			Title:             "Process Automation",
			Description:       "Automate the repetitive work that eats your margins.",
			Category:          models.CategoryInnovation,
			Complexity:        models.ComplexityAdvanced,
			EstimatedDuration: "4 weeks",
			Steps: steps("process-automation",
				[]models.StepKind{models.StepKindStep, models.StepKindTask, models.StepKindTask, models.StepKindMilestone},
				[]string{"List manual processes", "Score effort vs frequency", "Automate the top two", "Measure hours saved"}),
			SuccessMetrics: []string{"hours_saved_per_week"},
		},
		{
			ID:                "risk-resilience",
			Title:             "Risk Resilience",
			Description:       "Reduce single points of failure across suppliers and systems.",
			Category:          models.CategoryCompliance,
			Complexity:        models.ComplexityAdvanced,
			EstimatedDuration: "3 weeks",
			Steps: steps("risk-resilience",
				[]models.StepKind{models.StepKindStep, models.StepKindTask, models.StepKindChecklist},
				[]string{"Map critical dependencies", "Line up alternatives", "Write the contingency sheet"}),
			SuccessMetrics: []string{"single_points_of_failure"},
		},
	}
}
