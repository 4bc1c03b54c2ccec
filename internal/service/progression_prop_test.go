package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/bizpilot/journey-engine/internal/models"
)

// Random operation sequences against one journey instance must preserve the
// progression invariants: the step index only moves by one, only goBack moves
// it down, it stays within [0, totalSteps-1] while in_progress, and once the
// journey completes every further operation fails.
func TestProgressionProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		numSteps := rapid.IntRange(1, 10).Draw(rt, "numSteps")

		tpl := models.Template{
			ID:         "prop-tpl",
			Title:      "Property Template",
			Category:   models.CategoryGrowth,
			Complexity: models.ComplexityBeginner,
		}
		for i := 0; i < numSteps; i++ {
			tpl.Steps = append(tpl.Steps, models.Step{
				ID:         fmt.Sprintf("prop-tpl-%02d", i+1),
				TemplateID: tpl.ID,
				OrderIndex: i,
				Kind:       models.StepKindStep,
				RenderUnit: models.RenderForm,
			})
		}
		svc, _, _ := newService(t, tpl)

		p, err := svc.StartJourney(ctx, "prop-user", tpl.ID)
		if err != nil {
			rt.Fatalf("start journey: %v", err)
		}

		prevIndex := p.CurrentStepIndex
		completed := false
		numOps := rapid.IntRange(1, 40).Draw(rt, "numOps")
		for i := 0; i < numOps; i++ {
			op := rapid.SampledFrom([]string{"advance", "goBack", "submit", "complete"}).Draw(rt, "op")

			switch op {
			case "advance":
				next, err := svc.Advance(ctx, p.ID)
				if completed {
					if err == nil {
						rt.Fatalf("advance succeeded on completed journey")
					}
					continue
				}
				if err != nil {
					rt.Fatalf("advance: %v", err)
				}
				if next.Status == models.StatusCompleted {
					completed = true
					if next.ProgressPercentage != 100 {
						rt.Fatalf("completed journey at %d%%", next.ProgressPercentage)
					}
				} else if next.CurrentStepIndex != prevIndex+1 {
					rt.Fatalf("advance moved %d -> %d", prevIndex, next.CurrentStepIndex)
				}
				p = next
			case "goBack":
				next, err := svc.GoBack(ctx, p.ID)
				if completed {
					if err == nil {
						rt.Fatalf("goBack succeeded on completed journey")
					}
					continue
				}
				if err != nil {
					rt.Fatalf("goBack: %v", err)
				}
				want := prevIndex - 1
				if want < 0 {
					want = 0
				}
				if next.CurrentStepIndex != want {
					rt.Fatalf("goBack moved %d -> %d", prevIndex, next.CurrentStepIndex)
				}
				p = next
			case "submit":
				stepIdx := rapid.IntRange(0, numSteps-1).Draw(rt, "stepIdx")
				stepID := tpl.Steps[stepIdx].ID
				_, err := svc.SubmitStepResponse(ctx, p.ID, stepID, json.RawMessage(`{"n":1}`))
				if completed && err == nil {
					rt.Fatalf("submit succeeded on completed journey")
				}
				if !completed && err != nil {
					rt.Fatalf("submit: %v", err)
				}
			case "complete":
				next, err := svc.Complete(ctx, p.ID, nil)
				if completed {
					if err == nil {
						rt.Fatalf("complete succeeded twice")
					}
					continue
				}
				if err != nil {
					rt.Fatalf("complete: %v", err)
				}
				completed = true
				p = next
			}

			if !completed {
				if p.CurrentStepIndex < 0 || p.CurrentStepIndex > numSteps-1 {
					rt.Fatalf("step index %d out of bounds for %d steps", p.CurrentStepIndex, numSteps)
				}
				prevIndex = p.CurrentStepIndex
			}
		}

		// Responses never duplicate: at most one record per step.
		responses, err := svc.ListResponses(ctx, p.ID)
		if err != nil {
			rt.Fatalf("list responses: %v", err)
		}
		seen := map[string]bool{}
		for _, r := range responses {
			if seen[r.StepID] {
				rt.Fatalf("duplicate response record for step %s", r.StepID)
			}
			seen[r.StepID] = true
		}

		// The completed instance must remain in the user's history.
		journeys, err := svc.ListUserJourneys(ctx, "prop-user")
		if err != nil {
			rt.Fatalf("list journeys: %v", err)
		}
		if len(journeys) != 1 {
			rt.Fatalf("expected 1 journey in history, got %d", len(journeys))
		}
	})
}
