package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/microcosm-cc/bluemonday"

	"github.com/grantgpt/grant-matcher/internal/ai"
	"github.com/grantgpt/grant-matcher/internal/config"
	"github.com/grantgpt/grant-matcher/internal/db"
	"github.com/grantgpt/grant-matcher/internal/normalize"
	"github.com/grantgpt/grant-matcher/internal/vectorstore"
	"github.com/grantgpt/grant-matcher/internal/vectorstore/pgvector"
	"github.com/grantgpt/grant-matcher/internal/vectorstore/qdrant"
)

// Seeds the vector index from a JSON file of scraped grant records. Safe to
// re-run: point IDs are derived from the grant ID, so existing records are
// updated in place.
func main() {
	file := flag.String("file", "data/grants/grants.json", "path to the grants JSON file")
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		log.Fatalf("Failed to parse %s: %v", *file, err)
	}

	ctx := context.Background()
	embedder := ai.NewOpenAIClient(
		cfg.Embeddings.BaseURL,
		os.Getenv(cfg.Embeddings.APIKeyEnv),
		cfg.Embeddings.Model,
		cfg.Embeddings.Dimensions,
	)

	var store vectorstore.Store
	if cfg.VectorStore.Backend == "pgvector" {
		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()
		store = pgvector.NewStore(pool)
	} else {
		store = qdrant.NewStore(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     os.Getenv(cfg.VectorStore.Qdrant.APIKeyEnv),
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    cfg.VectorStore.Qdrant.Timeout(),
		})
	}

	if err := store.EnsureCollection(ctx, cfg.Embeddings.Dimensions); err != nil {
		log.Fatalf("Failed to prepare vector collection: %v", err)
	}

	normalizer := normalize.New(cfg.Matching.DefaultSuccessRate)
	policy := bluemonday.UGCPolicy()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Name", "Type", "Category", "Max Funding", "Status"})

	indexed, skipped := 0, 0
	for i, record := range records {
		// scraped descriptions arrive as untrusted HTML
		if desc, ok := record["description"].(string); ok {
			record["description"] = policy.Sanitize(desc)
		}

		grant, err := normalizer.Normalize("", record)
		if err != nil {
			log.Printf("Skipping record %d: %v", i, err)
			t.AppendRow(table.Row{i + 1, recordName(record), "", "", "", "skipped"})
			skipped++
			continue
		}

		vector, err := embedder.GenerateEmbedding(ctx, embeddingText(grant.Name, string(grant.Type), string(grant.Category), grant.MaxFunding, grant.Description, grant.Eligibility))
		if err != nil {
			log.Fatalf("Embedding failed for %q: %v", grant.Name, err)
		}

		err = store.Upsert(ctx, []vectorstore.Point{{
			ID:      grant.ID,
			Vector:  vector,
			Payload: record,
		}})
		if err != nil {
			log.Fatalf("Upsert failed for %q: %v", grant.Name, err)
		}

		t.AppendRow(table.Row{i + 1, grant.Name, grant.Type, grant.Category, fmt.Sprintf("%.0f", grant.MaxFunding), "indexed"})
		indexed++
	}

	t.Render()
	log.Printf("Done: %d indexed, %d skipped", indexed, skipped)
}

// embeddingText builds the document that gets embedded. The same fields the
// matcher queries against must appear here or similarity scores degrade.
func embeddingText(name, grantType, category string, maxFunding float64, description string, eligibility []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", name)
	fmt.Fprintf(&b, "Type: %s\n", grantType)
	fmt.Fprintf(&b, "Category: %s\n", category)
	if maxFunding > 0 {
		fmt.Fprintf(&b, "Max Funding: %.0f EUR\n", maxFunding)
	}
	fmt.Fprintf(&b, "Description: %s\n", description)
	if len(eligibility) > 0 {
		fmt.Fprintf(&b, "Eligibility: %s\n", strings.Join(eligibility, "; "))
	}
	return b.String()
}

func recordName(record map[string]any) string {
	for _, key := range []string{"name", "title"} {
		if v, ok := record[key].(string); ok && v != "" {
			return v
		}
	}
	return "(unnamed)"
}
