package match

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/grantgpt/grant-matcher/internal/models"
	"github.com/grantgpt/grant-matcher/internal/vectorstore"
)

type fakeEmbedder struct {
	lastText string
	err      error
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	matches    []vectorstore.Match
	lastLimit  int
	lastThresh float64
	err        error
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, limit int, threshold float64, _ map[string]string) ([]vectorstore.Match, error) {
	f.lastLimit = limit
	f.lastThresh = threshold
	return f.matches, f.err
}

func (f *fakeIndex) Scroll(_ context.Context, filters map[string]string, limit, offset int) ([]vectorstore.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []vectorstore.Match
	for _, m := range f.matches {
		ok := true
		for k, v := range filters {
			if s, _ := m.Payload[k].(string); s != v {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, m)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeIndex) Count(_ context.Context, filters map[string]string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	matches, _ := f.Scroll(context.Background(), filters, len(f.matches), 0)
	return len(matches), nil
}

// passthroughNormalizer maps payload fields directly, failing records
// without a name.
type passthroughNormalizer struct{}

func (passthroughNormalizer) Normalize(storeKey string, payload map[string]any) (models.Grant, error) {
	name, _ := payload["name"].(string)
	if name == "" {
		return models.Grant{}, errors.New("malformed grant record")
	}
	g := models.Grant{ID: storeKey, Name: name}
	if v, ok := payload["max_funding"].(float64); ok {
		g.MaxFunding = v
	}
	if v, ok := payload["deadline"].(string); ok {
		g.Deadline = v
	}
	if v, ok := payload["is_continuous"].(bool); ok {
		g.IsContinuous = v
	}
	if v, ok := payload["historical_success_rate"].(float64); ok {
		g.SuccessRate = v
	}
	if v, ok := payload["type"].(string); ok {
		g.Type = models.GrantType(v)
	}
	return g, nil
}

func newTestMatcher(embedder *fakeEmbedder, index *fakeIndex) *Matcher {
	return NewMatcher(embedder, index, passthroughNormalizer{}, Config{
		Now: func() time.Time { return testNow },
	})
}

func TestSearch_EndToEnd(t *testing.T) {
	index := &fakeIndex{matches: []vectorstore.Match{
		{ID: "zim", Score: 0.75, Payload: map[string]any{
			"name": "ZIM", "max_funding": 550000.0, "is_continuous": true,
			"historical_success_rate": 0.8,
		}},
		{ID: "small", Score: 0.9, Payload: map[string]any{
			"name": "Kleinprogramm", "max_funding": 20000.0, "is_continuous": true,
		}},
		{ID: "expired", Score: 0.8, Payload: map[string]any{
			"name": "Abgelaufen", "max_funding": 500000.0, "deadline": "2020-01-01",
		}},
	}}
	m := newTestMatcher(&fakeEmbedder{}, index)

	got, err := m.Search(context.Background(), SearchRequest{
		ProjectDescription: "KI-Projekt",
		Budget:             100000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the over-budget and expired candidates are filtered out
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if got[0].ID != "zim" {
		t.Fatalf("expected zim, got %s", got[0].ID)
	}
	if got[0].MatchScore == nil {
		t.Fatal("expected a match score")
	}
	// 0.75 * (1 + 0.8*0.5) * 1.0
	if !almostEqual(*got[0].MatchScore, 1.05) {
		t.Fatalf("expected score 1.05, got %f", *got[0].MatchScore)
	}
	if got[0].SimilarityScore != 0.75 {
		t.Fatalf("expected similarity 0.75, got %f", got[0].SimilarityScore)
	}
}

func TestSearch_OverfetchesAndAppliesThreshold(t *testing.T) {
	index := &fakeIndex{}
	m := newTestMatcher(&fakeEmbedder{}, index)

	if _, err := m.Search(context.Background(), SearchRequest{ProjectDescription: "x", Limit: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if index.lastLimit != 30 {
		t.Fatalf("expected fetch limit 30, got %d", index.lastLimit)
	}
	if index.lastThresh != 0.35 {
		t.Fatalf("expected threshold 0.35, got %f", index.lastThresh)
	}
}

func TestSearch_TruncatesToLimit(t *testing.T) {
	var matches []vectorstore.Match
	for i := 0; i < 8; i++ {
		matches = append(matches, vectorstore.Match{
			ID: fmt.Sprintf("g%d", i), Score: 0.5,
			Payload: map[string]any{"name": fmt.Sprintf("Grant %d", i), "is_continuous": true},
		})
	}
	m := newTestMatcher(&fakeEmbedder{}, &fakeIndex{matches: matches})

	got, err := m.Search(context.Background(), SearchRequest{ProjectDescription: "x", Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
}

func TestSearch_SkipsMalformedRecords(t *testing.T) {
	index := &fakeIndex{matches: []vectorstore.Match{
		{ID: "bad", Score: 0.9, Payload: map[string]any{"max_funding": 100000.0}},
		{ID: "good", Score: 0.6, Payload: map[string]any{"name": "Gut", "is_continuous": true}},
	}}
	m := newTestMatcher(&fakeEmbedder{}, index)

	got, err := m.Search(context.Background(), SearchRequest{ProjectDescription: "x"})
	if err != nil {
		t.Fatalf("one malformed record must not fail the search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "good" {
		t.Fatalf("expected only the valid record, got %v", got)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	m := newTestMatcher(&fakeEmbedder{}, &fakeIndex{})
	_, err := m.Search(context.Background(), SearchRequest{})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestSearch_EmbedderFailure(t *testing.T) {
	m := newTestMatcher(&fakeEmbedder{err: errors.New("connection refused")}, &fakeIndex{})
	_, err := m.Search(context.Background(), SearchRequest{ProjectDescription: "x"})
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestSearch_IndexFailure(t *testing.T) {
	m := newTestMatcher(&fakeEmbedder{}, &fakeIndex{err: errors.New("timeout")})
	_, err := m.Search(context.Background(), SearchRequest{ProjectDescription: "x"})
	if !errors.Is(err, ErrVectorStoreUnavailable) {
		t.Fatalf("expected ErrVectorStoreUnavailable, got %v", err)
	}
}

func TestSearch_NoMatchesIsEmptyNotError(t *testing.T) {
	m := newTestMatcher(&fakeEmbedder{}, &fakeIndex{})
	got, err := m.Search(context.Background(), SearchRequest{ProjectDescription: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestList_FiltersByType(t *testing.T) {
	index := &fakeIndex{matches: []vectorstore.Match{
		{ID: "a", Payload: map[string]any{"name": "A", "type": "federal"}},
		{ID: "b", Payload: map[string]any{"name": "B", "type": "state"}},
	}}
	m := newTestMatcher(&fakeEmbedder{}, index)

	got, err := m.List(context.Background(), ListParams{Type: "federal"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only the federal grant, got %v", got)
	}
	if got[0].MatchScore != nil {
		t.Fatal("listing must not carry match scores")
	}
}

func TestGet_ResolvesByURLField(t *testing.T) {
	index := &fakeIndex{matches: []vectorstore.Match{
		{ID: "p1", Payload: map[string]any{"name": "ZIM", "website_url": "https://www.zim.de/"}},
	}}
	m := newTestMatcher(&fakeEmbedder{}, index)

	grant, found, err := m.Get(context.Background(), "https://www.zim.de/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected the grant to be found")
	}
	if grant.Name != "ZIM" {
		t.Fatalf("unexpected grant: %+v", grant)
	}
}

func TestGet_NotFound(t *testing.T) {
	m := newTestMatcher(&fakeEmbedder{}, &fakeIndex{})
	_, found, err := m.Get(context.Background(), "https://unknown.example/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected not found")
	}
}

func TestStats_CountsByType(t *testing.T) {
	index := &fakeIndex{matches: []vectorstore.Match{
		{ID: "a", Payload: map[string]any{"name": "A", "type": "federal"}},
		{ID: "b", Payload: map[string]any{"name": "B", "type": "federal"}},
		{ID: "c", Payload: map[string]any{"name": "C", "type": "eu"}},
	}}
	m := newTestMatcher(&fakeEmbedder{}, index)

	stats, err := m.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats["total"] != 3 {
		t.Fatalf("expected total 3, got %v", stats["total"])
	}
	byType := stats["by_type"].(map[string]int)
	if byType["federal"] != 2 || byType["eu"] != 1 {
		t.Fatalf("unexpected type counts: %v", byType)
	}
}

func TestSearch_ComposedQueryReachesEmbedder(t *testing.T) {
	embedder := &fakeEmbedder{}
	m := newTestMatcher(embedder, &fakeIndex{})

	_, err := m.Search(context.Background(), SearchRequest{
		ProjectDescription: "Automatisierung",
		Industry:           "Logistik",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.lastText != "Automatisierung Branche: Logistik" {
		t.Fatalf("unexpected embedded text: %q", embedder.lastText)
	}
}
