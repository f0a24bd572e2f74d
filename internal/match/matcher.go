package match

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/grantgpt/grant-matcher/internal/models"
	"github.com/grantgpt/grant-matcher/internal/vectorstore"
)

// Embedder converts query text into the vector the index was built with.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Index is the slice of the vector store the matching core reads from.
type Index interface {
	Search(ctx context.Context, vector []float32, limit int, threshold float64, filters map[string]string) ([]vectorstore.Match, error)
	Scroll(ctx context.Context, filters map[string]string, limit, offset int) ([]vectorstore.Match, error)
	Count(ctx context.Context, filters map[string]string) (int, error)
}

// RecordNormalizer projects a raw store payload onto the canonical grant
// shape.
type RecordNormalizer interface {
	Normalize(storeKey string, payload map[string]any) (models.Grant, error)
}

// Config tunes the retrieval and ranking behavior. Zero values take the
// defaults below.
type Config struct {
	// ResultLimit is the default size of the ranked shortlist.
	ResultLimit int

	// OverfetchFactor multiplies the result limit for the vector search.
	// Post-filtering discards an unpredictable fraction of neighbors, so
	// the fetch limit must be strictly larger than the shortlist.
	OverfetchFactor int

	// ScoreThreshold is the similarity floor below which candidates are
	// not related enough to be worth filtering or ranking.
	ScoreThreshold float64

	// Now is replaceable for tests.
	Now func() time.Time
}

const (
	defaultResultLimit     = 10
	defaultOverfetchFactor = 3
	defaultScoreThreshold  = 0.35
	maxResultLimit         = 50
)

// Matcher turns a project description plus company attributes into a
// scored, filtered, ranked shortlist of grants. It holds no per-request
// state; concurrent searches share only the injected collaborators.
type Matcher struct {
	embedder   Embedder
	index      Index
	normalizer RecordNormalizer
	cfg        Config
}

func NewMatcher(embedder Embedder, index Index, normalizer RecordNormalizer, cfg Config) *Matcher {
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = defaultResultLimit
	}
	if cfg.OverfetchFactor < 2 {
		cfg.OverfetchFactor = defaultOverfetchFactor
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = defaultScoreThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Matcher{
		embedder:   embedder,
		index:      index,
		normalizer: normalizer,
		cfg:        cfg,
	}
}

// SearchRequest is the inbound match request.
type SearchRequest struct {
	ProjectDescription string  `json:"project_description"`
	Industry           string  `json:"industry"`
	CompanySize        int     `json:"company_size"`
	Budget             float64 `json:"budget"`
	Location           string  `json:"location"`
	Limit              int     `json:"limit"`
}

// Search runs the full match flow: compose, embed, retrieve, filter, rank.
func (m *Matcher) Search(ctx context.Context, req SearchRequest) ([]models.Grant, error) {
	query, err := ComposeQuery(QueryInput{
		ProjectDescription: req.ProjectDescription,
		Industry:           req.Industry,
		CompanySize:        req.CompanySize,
		Budget:             req.Budget,
		Location:           req.Location,
	})
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = m.cfg.ResultLimit
	}
	if limit > maxResultLimit {
		limit = maxResultLimit
	}

	vector, err := m.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	matches, err := m.index.Search(ctx, vector, limit*m.cfg.OverfetchFactor, m.cfg.ScoreThreshold, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVectorStoreUnavailable, err)
	}

	now := m.cfg.Now().UTC()
	candidates := m.normalizeMatches(matches, true)
	eligible := FilterEligible(candidates, BudgetWithin(req.Budget), DeadlineOpen(now))
	ranked := Rank(eligible, now)

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// ListParams selects a page of the corpus without a query.
type ListParams struct {
	Type     string
	Category string
	Skip     int
	Limit    int
}

// List pages through the stored grants with optional type/category filters.
// Listing has no query to score against, so results carry no match score.
func (m *Matcher) List(ctx context.Context, params ListParams) ([]models.Grant, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if params.Skip < 0 {
		params.Skip = 0
	}

	filters := map[string]string{}
	if params.Type != "" {
		filters["type"] = params.Type
	}
	if params.Category != "" {
		filters["category"] = params.Category
	}

	matches, err := m.index.Scroll(ctx, filters, limit, params.Skip)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVectorStoreUnavailable, err)
	}

	return m.normalizeMatches(matches, false), nil
}

// idLookupFields are the payload fields a grant ID may live under, tried in
// the same priority order the normalizer derives IDs with.
var idLookupFields = []string{"website_url", "url", "external_id"}

// Get resolves one grant by its stable identifier via exact-filter scroll.
// The boolean is false when no stored record matches.
func (m *Matcher) Get(ctx context.Context, id string) (models.Grant, bool, error) {
	for _, field := range idLookupFields {
		matches, err := m.index.Scroll(ctx, map[string]string{field: id}, 1, 0)
		if err != nil {
			return models.Grant{}, false, fmt.Errorf("%w: %v", ErrVectorStoreUnavailable, err)
		}
		if len(matches) == 0 {
			continue
		}
		grant, err := m.normalizer.Normalize(matches[0].ID, matches[0].Payload)
		if err != nil {
			return models.Grant{}, false, err
		}
		return grant, true, nil
	}
	return models.Grant{}, false, nil
}

// Stats reports corpus counts, total and per grant type.
func (m *Matcher) Stats(ctx context.Context) (map[string]any, error) {
	total, err := m.index.Count(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVectorStoreUnavailable, err)
	}

	byType := map[string]int{}
	for _, t := range []models.GrantType{models.TypeFederal, models.TypeState, models.TypeEU, models.TypeMunicipal} {
		count, err := m.index.Count(ctx, map[string]string{"type": string(t)})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVectorStoreUnavailable, err)
		}
		byType[string(t)] = count
	}

	return map[string]any{
		"total":   total,
		"by_type": byType,
	}, nil
}

// normalizeMatches projects raw store hits onto canonical grants, skipping
// malformed payloads: one bad record never fails the batch.
func (m *Matcher) normalizeMatches(matches []vectorstore.Match, withScores bool) []models.Grant {
	grants := make([]models.Grant, 0, len(matches))
	for _, hit := range matches {
		grant, err := m.normalizer.Normalize(hit.ID, hit.Payload)
		if err != nil {
			log.Printf("skipping malformed grant payload %s: %v", hit.ID, err)
			continue
		}
		if withScores {
			grant.SimilarityScore = hit.Score
		}
		grants = append(grants, grant)
	}
	return grants
}
