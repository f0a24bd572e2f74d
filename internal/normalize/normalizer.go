package normalize

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/grantgpt/grant-matcher/internal/match"
	"github.com/grantgpt/grant-matcher/internal/models"
)

// ErrMalformedRecord means a payload could not be normalized into a
// minimally valid grant: no name alias carried a value. Callers skip the
// record and continue; one bad record never fails a whole batch.
var ErrMalformedRecord = errors.New("malformed grant record")

// DescriptionLimit bounds description length for list views.
const DescriptionLimit = 500

// DefaultSuccessRate is the assumed application success rate for programs
// without measured statistics. It is a domain assumption, not data, which is
// why it is overridable on the Normalizer.
const DefaultSuccessRate = 0.60

// Alias tables, in priority order. The corpus has been scraped by several
// generations of scrapers, each with its own key names; the first present,
// non-empty value wins.
var (
	nameAliases        = []string{"name", "title"}
	urlAliases         = []string{"website_url", "url"}
	externalIDAliases  = []string{"external_id", "grant_id"}
	fundingAliases     = []string{"max_funding", "funding_amount"}
	descriptionAliases = []string{"description", "summary"}
	successAliases     = []string{"historical_success_rate", "success_rate"}
	funderAliases      = []string{"funder", "agency"}
	purposeAliases     = []string{"what_is_funded", "funding_purpose"}
)

// Normalizer projects heterogeneous raw store payloads onto the canonical
// Grant shape. It is a pure projection: applying it to its own output is a
// no-op.
type Normalizer struct {
	// SuccessRate is assigned to records without historical statistics.
	SuccessRate float64
}

func New(defaultSuccessRate float64) *Normalizer {
	if defaultSuccessRate < 0 || defaultSuccessRate > 1 {
		defaultSuccessRate = DefaultSuccessRate
	}
	return &Normalizer{SuccessRate: defaultSuccessRate}
}

// Normalize maps one raw payload into a canonical Grant. storeKey is the
// store-assigned point identifier, used as the last-resort stable ID when
// the payload has neither a URL nor an external identifier.
func (n *Normalizer) Normalize(storeKey string, payload map[string]any) (models.Grant, error) {
	// A record without any name field is unusable; a name field that is
	// present but blank still identifies a (badly scraped) program.
	name, present := "", false
	for _, key := range nameAliases {
		if v, ok := payload[key].(string); ok {
			present = true
			if name = cleanText(v); name != "" {
				break
			}
		}
	}
	if !present {
		return models.Grant{}, ErrMalformedRecord
	}
	if name == "" {
		name = models.UnknownName
	}

	g := models.Grant{
		ID:   recordID(storeKey, payload),
		Name: name,
	}

	g.Type = normalizeType(payload)
	g.Category = normalizeCategory(payload)
	g.MaxFunding = normalizeFunding(payload)
	g.SuccessRate = n.normalizeSuccessRate(payload)

	if deadline, ok := firstString(payload, []string{"deadline"}); ok {
		g.Deadline = strings.TrimSpace(deadline)
	}
	if cont, ok := payload["is_continuous"].(bool); ok {
		g.IsContinuous = cont
	} else if match.IsContinuousDeadline(g.Deadline) && g.Deadline != "" {
		g.IsContinuous = true
	}

	if desc, ok := firstString(payload, descriptionAliases); ok {
		g.Description = TruncateText(HTMLToText(desc), DescriptionLimit)
	}

	g.Eligibility = normalizeEligibility(payload)

	return g, nil
}

// recordID derives the stable identifier: official URL first, then external
// identifier, then the store-assigned key. Stability across re-imports is
// what lets repeated embedding runs update instead of duplicate.
func recordID(storeKey string, payload map[string]any) string {
	if url, ok := firstString(payload, urlAliases); ok {
		return strings.TrimSpace(url)
	}
	if id, ok := firstString(payload, externalIDAliases); ok {
		return strings.TrimSpace(id)
	}
	// Canonical re-projection: the payload already carries its derived ID.
	if id, ok := firstString(payload, []string{"id"}); ok {
		return strings.TrimSpace(id)
	}
	return storeKey
}

func normalizeType(payload map[string]any) models.GrantType {
	if raw, ok := firstString(payload, []string{"type"}); ok && models.ValidType(strings.TrimSpace(raw)) {
		return models.GrantType(strings.TrimSpace(raw))
	}
	funder, _ := firstString(payload, funderAliases)
	return InferType(funder)
}

func normalizeCategory(payload map[string]any) models.GrantCategory {
	if raw, ok := firstString(payload, []string{"category"}); ok && models.ValidCategory(strings.TrimSpace(raw)) {
		return models.GrantCategory(strings.TrimSpace(raw))
	}
	purpose, ok := firstString(payload, purposeAliases)
	if !ok {
		purpose, _ = firstString(payload, descriptionAliases)
	}
	return InferCategory(purpose)
}

func normalizeFunding(payload map[string]any) float64 {
	for _, key := range fundingAliases {
		switch v := payload[key].(type) {
		case float64:
			if v >= 0 {
				return v
			}
		case int:
			if v >= 0 {
				return float64(v)
			}
		case string:
			if amount := ExtractAmount(v); amount > 0 {
				return amount
			}
		}
	}
	return 0
}

func (n *Normalizer) normalizeSuccessRate(payload map[string]any) float64 {
	for _, key := range successAliases {
		if v, ok := payload[key].(float64); ok {
			if v < 0 {
				return 0
			}
			if v > 1 {
				return 1
			}
			return v
		}
	}
	return n.SuccessRate
}

// normalizeEligibility passes an existing eligibility list through, or
// builds one from the structured sub-fields the scrapers provide.
func normalizeEligibility(payload map[string]any) []string {
	if raw, ok := payload["eligibility"].([]any); ok {
		list := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				list = append(list, strings.TrimSpace(s))
			}
		}
		if len(list) > 0 {
			return list
		}
	}
	if raw, ok := payload["eligibility"].([]string); ok && len(raw) > 0 {
		return raw
	}

	const missing = "Nicht angegeben"
	who := missing
	if v, ok := firstString(payload, []string{"who_is_funded", "who_can_apply"}); ok {
		who = cleanText(v)
	}
	funder := missing
	if v, ok := firstString(payload, funderAliases); ok {
		funder = cleanText(v)
	}
	region := "Deutschland"
	if v, ok := firstString(payload, []string{"region"}); ok {
		region = cleanText(v)
	}

	return []string{
		who,
		"Fördergeber: " + funder,
		"Region: " + region,
	}
}

// firstString returns the first present, non-empty string value among the
// aliases.
func firstString(payload map[string]any, aliases []string) (string, bool) {
	for _, key := range aliases {
		if v, ok := payload[key].(string); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// cleanText collapses runs of whitespace and trims the string.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HTMLToText converts HTML to plain text, collapsing whitespace. Non-HTML
// input passes through cleaned.
func HTMLToText(html string) string {
	if !strings.Contains(html, "<") {
		return cleanText(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(html)
	}
	return cleanText(doc.Text())
}

// TruncateText cuts a string to at most maxLen runes, appending an ellipsis
// when it truncates.
func TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen > 3 {
		return string(runes[:maxLen-3]) + "..."
	}
	return string(runes[:maxLen])
}
