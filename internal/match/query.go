package match

import (
	"strconv"
	"strings"
)

// QueryInput carries the free-text project description plus the optional
// structured signals a company can provide.
type QueryInput struct {
	ProjectDescription string
	Industry           string
	CompanySize        int     // employees
	Budget             float64 // EUR
	Location           string
}

// ComposeQuery builds the natural-language query string that is embedded and
// matched against the grant corpus. Fields are appended in a fixed order,
// labeled in German to match the indexed grant texts. Returns
// ErrInvalidQuery when every field is empty.
func ComposeQuery(in QueryInput) (string, error) {
	var parts []string

	if desc := strings.TrimSpace(in.ProjectDescription); desc != "" {
		parts = append(parts, desc)
	}
	if industry := strings.TrimSpace(in.Industry); industry != "" {
		parts = append(parts, "Branche: "+industry)
	}
	if in.CompanySize > 0 {
		parts = append(parts, "Unternehmensgröße: "+strconv.Itoa(in.CompanySize)+" Mitarbeiter")
	}
	if in.Budget > 0 {
		parts = append(parts, "Budget: "+strconv.FormatFloat(in.Budget, 'f', -1, 64)+" EUR")
	}
	if location := strings.TrimSpace(in.Location); location != "" {
		parts = append(parts, "Standort: "+location)
	}

	if len(parts) == 0 {
		return "", ErrInvalidQuery
	}

	return strings.Join(parts, " "), nil
}
