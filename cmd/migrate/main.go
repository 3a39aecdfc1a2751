package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gometa/adapters/postgres"
	"gometa/domain/meta"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id              TEXT PRIMARY KEY,
	set_id          TEXT NOT NULL DEFAULT '',
	set_fingerprint TEXT NOT NULL DEFAULT '',
	label           TEXT NOT NULL DEFAULT '',
	side            TEXT NOT NULL DEFAULT '',
	estimator       TEXT NOT NULL DEFAULT '',
	k               INTEGER NOT NULL DEFAULT 0,
	k0              INTEGER NOT NULL DEFAULT 0,
	iterations      INTEGER NOT NULL DEFAULT 0,
	result          JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_fingerprint ON analyses (set_fingerprint);
`

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [results_dir]")
	}

	databaseURL := os.Args[1]

	// Connect to database
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		log.Fatalf("Failed to create analyses schema: %v", err)
	}
	log.Printf("Analyses schema ready")

	repo := postgres.NewAnalysisRepository(db)

	// Optionally backfill previously exported analysis results
	if len(os.Args) >= 3 {
		importResults(ctx, repo, os.Args[2])
	}

	count, err := repo.CountAnalyses(ctx)
	if err != nil {
		log.Fatalf("Failed to count analyses: %v", err)
	}
	log.Printf("Archive holds %d analyses", count)
}

func importResults(ctx context.Context, repo *postgres.AnalysisRepository, dir string) {
	files, err := findResultFiles(dir)
	if err != nil {
		log.Fatalf("Failed to scan %s: %v", dir, err)
	}

	log.Printf("Found %d result files to import", len(files))

	imported := 0
	skipped := 0

	for _, file := range files {
		result, err := loadResultFromFile(file)
		if err != nil {
			log.Printf("Failed to load result from %s: %v", file, err)
			skipped++
			continue
		}

		if result.ID == "" {
			log.Printf("Skipping %s: no analysis ID", filepath.Base(file))
			skipped++
			continue
		}

		if err := repo.SaveAnalysis(ctx, result); err != nil {
			log.Printf("Failed to save analysis %s: %v", result.ID, err)
			skipped++
			continue
		}

		imported++
		log.Printf("Imported analysis %s from %s", result.ID, filepath.Base(file))
	}

	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}

func findResultFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}

func loadResultFromFile(filePath string) (*meta.Result, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var result meta.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
