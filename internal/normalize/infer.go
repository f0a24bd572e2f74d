package normalize

import (
	"strings"

	"github.com/grantgpt/grant-matcher/internal/models"
)

// InferType derives a grant type from funder name keywords. The chain is
// ordered: EU programmes frequently mention national co-funders, so EU
// markers are checked first. Unmatched funders default to state level, the
// most common case in the Förderdatenbank corpus.
func InferType(funder string) models.GrantType {
	f := strings.ToLower(funder)

	euHints := []string{"europ", "eu-", "horizon", "kommission", "european"}
	for _, hint := range euHints {
		if strings.Contains(f, hint) {
			return models.TypeEU
		}
	}

	federalHints := []string{"bund", "bmwk", "bmbf", "bafa", "kfw", "zim"}
	for _, hint := range federalHints {
		if strings.Contains(f, hint) {
			return models.TypeFederal
		}
	}

	municipalHints := []string{"stadt", "kommune", "kommunal", "gemeinde"}
	for _, hint := range municipalHints {
		if strings.Contains(f, hint) {
			return models.TypeMunicipal
		}
	}

	return models.TypeState
}

// categoryHints maps funding-purpose keywords to categories, tried in order.
var categoryHints = []struct {
	category models.GrantCategory
	keywords []string
}{
	{models.CategoryInnovation, []string{"innovation", "forschung", "entwicklung", "f&e", "research"}},
	{models.CategoryGreenTech, []string{"klima", "umwelt", "energie", "nachhaltig", "green"}},
	{models.CategoryExport, []string{"export", "außenwirtschaft", "international"}},
	{models.CategoryTraining, []string{"weiterbildung", "qualifizierung", "ausbildung", "schulung"}},
	{models.CategoryRegional, []string{"region", "strukturschwach", "ländlich"}},
	{models.CategoryDigitalization, []string{"digital", "it-", "software"}},
}

// InferCategory derives a grant category from funding-purpose free text.
// Unmatched text defaults to digitalization, mirroring the corpus baseline.
func InferCategory(purpose string) models.GrantCategory {
	p := strings.ToLower(purpose)
	for _, hint := range categoryHints {
		for _, kw := range hint.keywords {
			if strings.Contains(p, kw) {
				return hint.category
			}
		}
	}
	return models.CategoryDigitalization
}
