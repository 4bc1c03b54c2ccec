package recommend

import "github.com/bizpilot/journey-engine/internal/models"

// FoundationBlocks is the fixed onboarding building-block set the foundation
// gate measures against.
var FoundationBlocks = []string{
	"business_profile",
	"products_services",
	"customer_base",
	"finance_basics",
	"goals",
}

// complexitiesFor maps a maturity level to the template complexities it may
// see. An unknown level places no restriction.
func complexitiesFor(level models.MaturityLevel) map[models.TemplateComplexity]bool {
	switch level {
	case models.MaturityStartup:
		return map[models.TemplateComplexity]bool{
			models.ComplexityBeginner: true,
		}
	case models.MaturityGrowing:
		return map[models.TemplateComplexity]bool{
			models.ComplexityBeginner:     true,
			models.ComplexityIntermediate: true,
		}
	case models.MaturityScaling:
		return map[models.TemplateComplexity]bool{
			models.ComplexityIntermediate: true,
			models.ComplexityAdvanced:     true,
		}
	case models.MaturityMature:
		return map[models.TemplateComplexity]bool{
			models.ComplexityAdvanced: true,
		}
	default:
		return map[models.TemplateComplexity]bool{
			models.ComplexityBeginner:     true,
			models.ComplexityIntermediate: true,
			models.ComplexityAdvanced:     true,
		}
	}
}

// Fixed tag-to-template tables. Template ids refer to the built-in catalog
// (store.DefaultCatalog); unknown ids are skipped at lookup time, so a
// trimmed catalog degrades quietly.

var challengeTemplates = map[string][]string{
	"poor_sales_performance": {"sales-optimization"},
	"low_online_visibility":  {"digital-presence", "marketing-reach"},
	"cash_flow_pressure":     {"cashflow-stability"},
	"high_customer_churn":    {"customer-retention"},
	"overloaded_founder":     {"team-scaling"},
}

var opportunityTemplates = map[string][]string{
	"market_expansion":        {"marketing-reach"},
	"premium_pricing":         {"pricing-review"},
	"untapped_online_channel": {"digital-presence"},
	"hiring_capacity":         {"team-scaling"},
}

var riskTemplates = map[string][]string{
	"regulatory_exposure":        {"compliance-basics"},
	"cash_reserve_low":           {"cashflow-stability"},
	"single_supplier_dependency": {"risk-resilience"},
}

var patternTemplates = map[string][]string{
	"manual_process_overload": {"process-automation"},
	"founder_bottleneck":      {"team-scaling"},
	"repeat_purchase_decline": {"customer-retention"},
}
