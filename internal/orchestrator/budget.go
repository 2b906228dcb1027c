package orchestrator

import (
	"time"

	"github.com/fathomsearch/fathom/internal/lane"
	"github.com/fathomsearch/fathom/internal/registry"
)

// budgetProfiles are the per-class outer request budgets.
var budgetProfiles = map[lane.QueryClass]time.Duration{
	lane.ClassSimple:     5 * time.Second,
	lane.ClassTechnical:  7 * time.Second,
	lane.ClassResearch:   10 * time.Second,
	lane.ClassMultimedia: 10 * time.Second,
}

// BudgetPlan fixes the deadlines of one request at planning time.
// Invariant: every per-lane deadline is at or before the global deadline.
type BudgetPlan struct {
	Start          time.Time
	GlobalBudget   time.Duration
	GlobalDeadline time.Time
	PerLane        map[lane.ID]time.Time
}

// PlanBudget computes the request's deadlines. The effective global
// budget is the class profile capped by the configured retrieval budget
// (RETRIEVAL_TIMEOUT_MS); each lane gets min(lane timeout, global
// budget). Planning is pure: no I/O, no failures.
func PlanBudget(class lane.QueryClass, now time.Time, retrievalCap time.Duration, lanes []lane.ID, reg *registry.Registry) BudgetPlan {
	budget, ok := budgetProfiles[class]
	if !ok {
		budget = budgetProfiles[lane.ClassSimple]
	}
	if retrievalCap > 0 && retrievalCap < budget {
		budget = retrievalCap
	}

	plan := BudgetPlan{
		Start:          now,
		GlobalBudget:   budget,
		GlobalDeadline: now.Add(budget),
		PerLane:        make(map[lane.ID]time.Time, len(lanes)),
	}
	for _, id := range lanes {
		cfg, ok := reg.Config(id)
		if !ok {
			continue
		}
		laneBudget := cfg.Timeout
		if laneBudget > budget {
			laneBudget = budget
		}
		plan.PerLane[id] = now.Add(laneBudget)
	}
	return plan
}

// ShouldSkip reports whether a lane launched at now would start with less
// than a quarter of the global budget remaining; such lanes are not
// launched and report disabled with reason "budget_exhausted".
func (p BudgetPlan) ShouldSkip(now time.Time) bool {
	return p.GlobalDeadline.Sub(now) < p.GlobalBudget/4
}

// valid checks the plan's deadline invariant. A violation is a
// catastrophic planner bug surfaced as an internal error, never as a
// partial response.
func (p BudgetPlan) valid() bool {
	for _, d := range p.PerLane {
		if d.After(p.GlobalDeadline) {
			return false
		}
	}
	return true
}
