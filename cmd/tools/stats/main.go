package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/grantgpt/grant-matcher/internal/config"
	"github.com/grantgpt/grant-matcher/internal/db"
	"github.com/grantgpt/grant-matcher/internal/models"
	"github.com/grantgpt/grant-matcher/internal/vectorstore"
	"github.com/grantgpt/grant-matcher/internal/vectorstore/pgvector"
	"github.com/grantgpt/grant-matcher/internal/vectorstore/qdrant"
)

// Prints corpus counts per grant type and category for a quick sanity
// check after seeding.
func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
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

	total, err := store.Count(ctx, nil)
	if err != nil {
		log.Fatalf("Count failed: %v", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Dimension", "Value", "Count"})
	t.AppendRow(table.Row{"total", "", total})

	for _, grantType := range []models.GrantType{models.TypeFederal, models.TypeState, models.TypeEU, models.TypeMunicipal} {
		count, err := store.Count(ctx, map[string]string{"type": string(grantType)})
		if err != nil {
			log.Fatalf("Count by type failed: %v", err)
		}
		t.AppendRow(table.Row{"type", string(grantType), count})
	}

	for _, category := range []models.GrantCategory{
		models.CategoryInnovation, models.CategoryDigitalization, models.CategoryGreenTech,
		models.CategoryExport, models.CategoryTraining, models.CategoryRegional,
	} {
		count, err := store.Count(ctx, map[string]string{"category": string(category)})
		if err != nil {
			log.Fatalf("Count by category failed: %v", err)
		}
		t.AppendRow(table.Row{"category", string(category), count})
	}

	t.Render()
}
