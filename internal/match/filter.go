package match

import (
	"time"

	"github.com/grantgpt/grant-matcher/internal/models"
)

// Constraint is a hard eligibility rule. It returns true when the grant
// stays eligible. Eligibility is binary: a failing constraint drops the
// candidate, it never just lowers a score.
type Constraint func(models.Grant) bool

// BudgetWithin drops grants whose funding ceiling is below the project
// budget. A missing or zero MaxFunding never excludes: absent data cannot
// disprove eligibility.
func BudgetWithin(budget float64) Constraint {
	return func(g models.Grant) bool {
		if budget <= 0 || g.MaxFunding <= 0 {
			return true
		}
		return budget <= g.MaxFunding
	}
}

// DeadlineOpen drops grants whose deadline has passed. Continuous programs
// and unparseable deadline text always pass (see IsDeadlineOpen).
func DeadlineOpen(now time.Time) Constraint {
	return func(g models.Grant) bool {
		if g.IsContinuous {
			return true
		}
		return IsDeadlineOpen(g.Deadline, now)
	}
}

// FilterEligible keeps the grants that satisfy every constraint. Constraints
// are independent: the first failing one drops the candidate.
func FilterEligible(grants []models.Grant, constraints ...Constraint) []models.Grant {
	eligible := make([]models.Grant, 0, len(grants))

candidates:
	for _, g := range grants {
		for _, keep := range constraints {
			if !keep(g) {
				continue candidates
			}
		}
		eligible = append(eligible, g)
	}

	return eligible
}
