package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/grantgpt/grant-matcher/internal/ai"
	"github.com/grantgpt/grant-matcher/internal/api"
	"github.com/grantgpt/grant-matcher/internal/config"
	"github.com/grantgpt/grant-matcher/internal/db"
	"github.com/grantgpt/grant-matcher/internal/match"
	"github.com/grantgpt/grant-matcher/internal/normalize"
	"github.com/grantgpt/grant-matcher/internal/vectorstore"
	"github.com/grantgpt/grant-matcher/internal/vectorstore/pgvector"
	"github.com/grantgpt/grant-matcher/internal/vectorstore/qdrant"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// .env is for local development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	embedder := ai.NewOpenAIClient(
		cfg.Embeddings.BaseURL,
		os.Getenv(cfg.Embeddings.APIKeyEnv),
		cfg.Embeddings.Model,
		cfg.Embeddings.Dimensions,
	)

	var store vectorstore.Store
	switch cfg.VectorStore.Backend {
	case "pgvector":
		store = pgvector.NewStore(pool)
	default:
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
	matcher := match.NewMatcher(embedder, store, normalizer, match.Config{
		ResultLimit:     cfg.Matching.ResultLimit,
		OverfetchFactor: cfg.Matching.OverfetchFactor,
		ScoreThreshold:  cfg.Matching.ScoreThreshold,
	})

	srv := api.NewServer(pool, matcher, store, cfg.Embeddings.Dimensions, cfg.Server.AllowOrigins)

	port := os.Getenv("PORT")
	if port == "" {
		port = strconv.Itoa(cfg.Server.Port)
	}
	log.Printf("Server starting on port %s (vector backend: %s)...", port, cfg.VectorStore.Backend)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
