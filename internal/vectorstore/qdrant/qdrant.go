package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/grantgpt/grant-matcher/internal/vectorstore"
)

// Store is a minimal REST client to Qdrant. It assumes cosine distance and
// creates the collection if missing.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "grants"
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}
	// Qdrant returns 200 if the collection already exists with this schema.
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", s.collection), body, nil)
}

func (s *Store) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	payload := make([]map[string]any, len(points))
	for i, p := range points {
		payload[i] = map[string]any{
			"id":      vectorstore.PointID(p.ID),
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	url := fmt.Sprintf("/collections/%s/points?wait=true", s.collection)
	return s.do(ctx, http.MethodPut, url, map[string]any{"points": payload}, nil)
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int, threshold float64, filters map[string]string) ([]vectorstore.Match, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if threshold > 0 {
		req["score_threshold"] = threshold
	}
	if f := buildFilter(filters); f != nil {
		req["filter"] = f
	}

	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("/collections/%s/points/search", s.collection)
	if err := s.do(ctx, http.MethodPost, url, req, &resp); err != nil {
		return nil, err
	}

	matches := make([]vectorstore.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, vectorstore.Match{ID: r.ID, Score: r.Score, Payload: r.Payload})
	}
	return matches, nil
}

func (s *Store) Scroll(ctx context.Context, filters map[string]string, limit, offset int) ([]vectorstore.Match, error) {
	// Qdrant's scroll cursor is a point ID, not a numeric offset; with UUID
	// point IDs we page by over-fetching and slicing. Fine at corpus scale.
	req := map[string]any{
		"limit":        limit + offset,
		"with_payload": true,
	}
	if f := buildFilter(filters); f != nil {
		req["filter"] = f
	}

	var resp struct {
		Result struct {
			Points []struct {
				ID      string         `json:"id"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	url := fmt.Sprintf("/collections/%s/points/scroll", s.collection)
	if err := s.do(ctx, http.MethodPost, url, req, &resp); err != nil {
		return nil, err
	}

	points := resp.Result.Points
	if offset >= len(points) {
		return []vectorstore.Match{}, nil
	}
	points = points[offset:]

	matches := make([]vectorstore.Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, vectorstore.Match{ID: p.ID, Payload: p.Payload})
	}
	return matches, nil
}

func (s *Store) Count(ctx context.Context, filters map[string]string) (int, error) {
	req := map[string]any{"exact": true}
	if f := buildFilter(filters); f != nil {
		req["filter"] = f
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("/collections/%s/points/count", s.collection)
	if err := s.do(ctx, http.MethodPost, url, req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Store) Delete(ctx context.Context, grantID string) error {
	url := fmt.Sprintf("/collections/%s/points/delete?wait=true", s.collection)
	body := map[string]any{"points": []string{vectorstore.PointID(grantID)}}
	return s.do(ctx, http.MethodPost, url, body, nil)
}

// buildFilter converts exact field matches into a Qdrant must-filter.
func buildFilter(filters map[string]string) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	conditions := make([]map[string]any, 0, len(filters))
	for key, value := range filters {
		conditions = append(conditions, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	return map[string]any{"must": conditions}
}

func (s *Store) do(ctx context.Context, method, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s returned status: %s", method, path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
