package match

import (
	"sort"
	"time"

	"github.com/grantgpt/grant-matcher/internal/models"
)

// successRateBoostWeight scales the historical success-rate boost: a perfect
// track record lifts the similarity score by 50%.
const successRateBoostWeight = 0.5

// urgencyMultiplier boosts programs whose deadline is close, so "act now"
// opportunities surface above equally similar but leisurely ones. Continuous
// programs and unparseable deadlines get no boost.
func urgencyMultiplier(g models.Grant, now time.Time) float64 {
	if g.IsContinuous {
		return 1.0
	}
	days, ok := DaysUntilDeadline(g.Deadline, now)
	if !ok {
		return 1.0
	}
	switch {
	case days < 30:
		return 1.2
	case days < 60:
		return 1.1
	default:
		return 1.0
	}
}

// Rank computes the composite match score for each grant and sorts
// descending by it. The two boosts are multiplicative and independent, so
// neither can zero out the other:
//
//	match = similarity * (1 + success_rate*0.5) * urgency
//
// Ties break by the raw similarity score; the sort is stable so equal
// composites keep a deterministic order.
func Rank(grants []models.Grant, now time.Time) []models.Grant {
	for i := range grants {
		score := grants[i].SimilarityScore
		score *= 1 + grants[i].SuccessRate*successRateBoostWeight
		score *= urgencyMultiplier(grants[i], now)
		grants[i].MatchScore = &score
	}

	sort.SliceStable(grants, func(i, j int) bool {
		if *grants[i].MatchScore != *grants[j].MatchScore {
			return *grants[i].MatchScore > *grants[j].MatchScore
		}
		return grants[i].SimilarityScore > grants[j].SimilarityScore
	})

	return grants
}
