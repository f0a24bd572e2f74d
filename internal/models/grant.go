package models

// GrantType classifies a funding program by the level of government (or the
// EU) that funds it.
type GrantType string

const (
	TypeFederal   GrantType = "federal"
	TypeState     GrantType = "state"
	TypeEU        GrantType = "eu"
	TypeMunicipal GrantType = "municipal"
)

// GrantCategory classifies a funding program by its funding purpose.
type GrantCategory string

const (
	CategoryInnovation     GrantCategory = "innovation"
	CategoryDigitalization GrantCategory = "digitalization"
	CategoryGreenTech      GrantCategory = "green_tech"
	CategoryExport         GrantCategory = "export"
	CategoryTraining       GrantCategory = "training"
	CategoryRegional       GrantCategory = "regional"
)

// ValidType reports whether s is one of the known grant types.
func ValidType(s string) bool {
	switch GrantType(s) {
	case TypeFederal, TypeState, TypeEU, TypeMunicipal:
		return true
	}
	return false
}

// ValidCategory reports whether s is one of the known grant categories.
func ValidCategory(s string) bool {
	switch GrantCategory(s) {
	case CategoryInnovation, CategoryDigitalization, CategoryGreenTech,
		CategoryExport, CategoryTraining, CategoryRegional:
		return true
	}
	return false
}

// UnknownName is the display title used when a program has a name field that
// is present but blank after cleaning.
const UnknownName = "Unknown"

// Grant is the canonical, post-normalization shape of one funding program.
//
// SimilarityScore and MatchScore are transient: they are attached per query
// and never written back to the store. MatchScore is nil on the listing
// path, which has no query to score against.
type Grant struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         GrantType     `json:"type"`
	Category     GrantCategory `json:"category"`
	MaxFunding   float64       `json:"max_funding"` // EUR ceiling; 0 means unknown
	Deadline     string        `json:"deadline,omitempty"`
	IsContinuous bool          `json:"is_continuous"`
	Description  string        `json:"description"`
	Eligibility  []string      `json:"eligibility"`
	SuccessRate  float64       `json:"historical_success_rate"`

	SimilarityScore float64  `json:"similarity_score,omitempty"`
	MatchScore      *float64 `json:"match_score,omitempty"`
}
