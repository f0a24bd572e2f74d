package normalize

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/grantgpt/grant-matcher/internal/models"
)

func TestNormalize_FullRecord(t *testing.T) {
	n := New(DefaultSuccessRate)
	g, err := n.Normalize("point-1", map[string]any{
		"name":                    "ZIM - Zentrales Innovationsprogramm Mittelstand",
		"type":                    "federal",
		"category":                "innovation",
		"website_url":             "https://www.zim.de/",
		"funding_amount":          "bis zu 550.000 Euro",
		"deadline":                "laufend",
		"description":             "<p>Förderung von FuE-Projekten im Mittelstand.</p>",
		"who_can_apply":           "KMU mit weniger als 500 Mitarbeitern",
		"funder":                  "BMWK",
		"region":                  "Deutschland",
		"historical_success_rate": 0.55,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.ID != "https://www.zim.de/" {
		t.Fatalf("expected URL as ID, got %q", g.ID)
	}
	if g.Type != models.TypeFederal || g.Category != models.CategoryInnovation {
		t.Fatalf("unexpected classification: %s/%s", g.Type, g.Category)
	}
	if g.MaxFunding != 550000 {
		t.Fatalf("expected 550000, got %f", g.MaxFunding)
	}
	if !g.IsContinuous {
		t.Fatal("laufend must mark the grant continuous")
	}
	if strings.Contains(g.Description, "<p>") {
		t.Fatalf("description must be plain text, got %q", g.Description)
	}
	if g.SuccessRate != 0.55 {
		t.Fatalf("expected measured success rate, got %f", g.SuccessRate)
	}
	if len(g.Eligibility) != 3 || g.Eligibility[0] != "KMU mit weniger als 500 Mitarbeitern" {
		t.Fatalf("unexpected eligibility: %v", g.Eligibility)
	}
}

func TestNormalize_AliasKeys(t *testing.T) {
	n := New(DefaultSuccessRate)
	g, err := n.Normalize("point-2", map[string]any{
		"title":   "Digital Jetzt",
		"url":     "https://example.de/digital-jetzt",
		"summary": "Investitionsförderung für KMU",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Name != "Digital Jetzt" {
		t.Fatalf("title alias not honored: %q", g.Name)
	}
	if g.ID != "https://example.de/digital-jetzt" {
		t.Fatalf("url alias not honored: %q", g.ID)
	}
	if g.Description != "Investitionsförderung für KMU" {
		t.Fatalf("summary alias not honored: %q", g.Description)
	}
}

func TestNormalize_MissingName(t *testing.T) {
	n := New(DefaultSuccessRate)
	_, err := n.Normalize("point-3", map[string]any{"max_funding": 100000.0})
	if !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestNormalize_BlankNameBecomesUnknown(t *testing.T) {
	n := New(DefaultSuccessRate)
	g, err := n.Normalize("point-4", map[string]any{"name": "   ", "external_id": "e-4"})
	if err != nil {
		t.Fatalf("a blank name is still a record: %v", err)
	}
	if g.Name != models.UnknownName {
		t.Fatalf("expected %q, got %q", models.UnknownName, g.Name)
	}
}

func TestNormalize_CollapsesNameWhitespace(t *testing.T) {
	n := New(DefaultSuccessRate)
	g, err := n.Normalize("point-4b", map[string]any{"name": "  go\n digital  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Name != "go digital" {
		t.Fatalf("expected collapsed name, got %q", g.Name)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	n := New(0.6)
	g, err := n.Normalize("point-5", map[string]any{"name": "Unbekanntes Programm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ID != "point-5" {
		t.Fatalf("expected store key fallback ID, got %q", g.ID)
	}
	if g.SuccessRate != 0.6 {
		t.Fatalf("expected default success rate, got %f", g.SuccessRate)
	}
	if g.Type != models.TypeState {
		t.Fatalf("expected state default, got %s", g.Type)
	}
	if g.Category != models.CategoryDigitalization {
		t.Fatalf("expected digitalization default, got %s", g.Category)
	}
	want := []string{"Nicht angegeben", "Fördergeber: Nicht angegeben", "Region: Deutschland"}
	for i, e := range want {
		if g.Eligibility[i] != e {
			t.Fatalf("eligibility[%d] = %q, want %q", i, g.Eligibility[i], e)
		}
	}
}

func TestNormalize_DescriptionTruncation(t *testing.T) {
	n := New(DefaultSuccessRate)
	g, err := n.Normalize("point-6", map[string]any{
		"name":        "Langtext",
		"description": strings.Repeat("ä", 600),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len([]rune(g.Description)); got != DescriptionLimit {
		t.Fatalf("expected %d runes, got %d", DescriptionLimit, got)
	}
	if !strings.HasSuffix(g.Description, "...") {
		t.Fatal("truncated description must end with ellipsis")
	}
}

// Normalization is a projection: feeding its own output back through must
// change nothing.
func TestNormalize_Idempotent(t *testing.T) {
	n := New(DefaultSuccessRate)
	first, err := n.Normalize("point-7", map[string]any{
		"name":           "go-digital",
		"website_url":    "https://example.de/go-digital",
		"funding_amount": "bis zu 16.500 Euro",
		"deadline":       "fortlaufend",
		"description":    "<p>" + strings.Repeat("Beratung. ", 80) + "</p>",
		"funder":         "BMWK",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// round-trip through JSON the way the store payload would
	raw, err := json.Marshal(first)
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatal(err)
	}

	second, err := n.Normalize("point-7", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.ID != first.ID || second.Name != first.Name ||
		second.Type != first.Type || second.Category != first.Category ||
		second.MaxFunding != first.MaxFunding || second.Deadline != first.Deadline ||
		second.IsContinuous != first.IsContinuous || second.Description != first.Description ||
		second.SuccessRate != first.SuccessRate {
		t.Fatalf("normalization not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestInferType(t *testing.T) {
	cases := []struct {
		funder string
		want   models.GrantType
	}{
		{"Europäische Kommission", models.TypeEU},
		{"Horizon Europe Programme", models.TypeEU},
		{"Bundesministerium für Wirtschaft", models.TypeFederal},
		{"KfW Bankengruppe", models.TypeFederal},
		{"Stadt München", models.TypeMunicipal},
		{"Wirtschaftsministerium Hessen", models.TypeState},
		{"", models.TypeState},
	}
	for _, tc := range cases {
		if got := InferType(tc.funder); got != tc.want {
			t.Fatalf("InferType(%q) = %s, want %s", tc.funder, got, tc.want)
		}
	}
}

func TestInferCategory(t *testing.T) {
	cases := []struct {
		purpose string
		want    models.GrantCategory
	}{
		{"Forschung und Entwicklung neuer Produkte", models.CategoryInnovation},
		{"Energieeffizienz und Klimaschutz", models.CategoryGreenTech},
		{"Erschließung internationaler Märkte", models.CategoryExport},
		{"Qualifizierung von Beschäftigten", models.CategoryTraining},
		{"Unterstützung strukturschwacher Regionen", models.CategoryRegional},
		{"Einführung von Software", models.CategoryDigitalization},
		{"", models.CategoryDigitalization},
	}
	for _, tc := range cases {
		if got := InferCategory(tc.purpose); got != tc.want {
			t.Fatalf("InferCategory(%q) = %s, want %s", tc.purpose, got, tc.want)
		}
	}
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText("<div><p>Förderung  von</p> <b>Projekten</b></div>")
	if got != "Förderung von Projekten" {
		t.Fatalf("unexpected text: %q", got)
	}

	if got := HTMLToText("plain text already"); got != "plain text already" {
		t.Fatalf("plain text must pass through, got %q", got)
	}
}
