package match

import (
	"errors"
	"testing"
)

func TestComposeQuery_FullInput(t *testing.T) {
	query, err := ComposeQuery(QueryInput{
		ProjectDescription: "KI-gestützte Qualitätskontrolle in der Fertigung",
		Industry:           "Software",
		CompanySize:        45,
		Budget:             100000,
		Location:           "Bayern",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "KI-gestützte Qualitätskontrolle in der Fertigung " +
		"Branche: Software " +
		"Unternehmensgröße: 45 Mitarbeiter " +
		"Budget: 100000 EUR " +
		"Standort: Bayern"
	if query != want {
		t.Fatalf("query mismatch:\n got: %s\nwant: %s", query, want)
	}
}

func TestComposeQuery_SkipsEmptyFields(t *testing.T) {
	query, err := ComposeQuery(QueryInput{ProjectDescription: "Digitalisierung der Lagerverwaltung"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "Digitalisierung der Lagerverwaltung" {
		t.Fatalf("expected bare description, got %q", query)
	}
}

func TestComposeQuery_StructuredOnly(t *testing.T) {
	query, err := ComposeQuery(QueryInput{Industry: "Maschinenbau", Budget: 50000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "Branche: Maschinenbau Budget: 50000 EUR" {
		t.Fatalf("unexpected query: %q", query)
	}
}

func TestComposeQuery_EmptyInput(t *testing.T) {
	_, err := ComposeQuery(QueryInput{ProjectDescription: "   "})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}
