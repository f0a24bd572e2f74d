package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

// Point is one stored grant: its embedding plus the raw payload the
// scrapers produced. ID is the grant identifier; backends derive their
// store key from it via PointID.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Match is one similarity-search or scroll hit. Score is zero on the scroll
// path, which has no query vector.
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store is the contract both index backends satisfy. Search filters are
// exact payload-field matches; a nil or empty filter map matches everything.
type Store interface {
	// EnsureCollection creates the index for the given vector dimension if
	// it does not exist. The dimension must equal the embedder's output
	// dimension exactly or every query will fail or return nonsense.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or updates points. Point IDs are stable across
	// re-imports so repeated embedding runs update rather than duplicate.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to limit nearest neighbors with cosine similarity
	// of at least threshold, best first.
	Search(ctx context.Context, vector []float32, limit int, threshold float64, filters map[string]string) ([]Match, error)

	// Scroll pages through points matching the filters without a query
	// vector, in stable ID order.
	Scroll(ctx context.Context, filters map[string]string, limit, offset int) ([]Match, error)

	// Count returns the number of points matching the filters.
	Count(ctx context.Context, filters map[string]string) (int, error)

	// Delete removes the point for a grant ID. Missing points are not an
	// error.
	Delete(ctx context.Context, grantID string) error
}

// PointID derives the deterministic store key for a grant identifier: a v5
// UUID in the DNS namespace, matching how the corpus was originally indexed.
func PointID(grantID string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(grantID)).String()
}
