package main

import (
	"log"

	"gometa/adapters/bias"
	"gometa/adapters/pooling"
	"gometa/adapters/postgres"
	"gometa/adapters/tabular"
	"gometa/app"
	"gometa/internal/config"
	"gometa/internal/testkit"
	"gometa/ports"
	"gometa/trimfill"
	"gometa/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Choose the archive: PostgreSQL when configured, in-memory otherwise
	var archive ports.ArchivePort
	if appConfig.Database.Enabled() {
		db, err := sqlx.Connect("postgres", appConfig.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}

		archive = postgres.NewAnalysisRepository(db)
		log.Printf("Archiving analyses to PostgreSQL")
	} else {
		log.Printf("No DATABASE_URL configured, archiving analyses in memory")
		archive = testkit.NewMemoryArchive()
	}

	analyzer := trimfill.NewAnalyzer(pooling.NewEngine(), bias.NewEgger(), bias.NewBegg())

	analysisService := app.NewAnalysisService(analyzer, archive)
	analysisService.SetDefaults(app.AnalysisRequest{
		Estimator:     appConfig.Analysis.Estimator,
		BiasMethod:    appConfig.Analysis.BiasMethod,
		Level:         appConfig.Analysis.Level,
		HartungKnapp:  appConfig.Analysis.HartungKnapp,
		Prediction:    appConfig.Analysis.Prediction,
		MaxIterations: appConfig.Analysis.MaxIterations,
	})

	batchService := app.NewBatchService(analysisService, appConfig.Analysis.MaxConcurrent)

	apiApp := ui.NewApp(ui.Config{
		Port:         appConfig.Server.Port,
		ReadTimeout:  appConfig.Server.ReadTimeout,
		WriteTimeout: appConfig.Server.WriteTimeout,
	}, analysisService, batchService, tabular.NewReader())

	log.Fatal(apiApp.Start())
}
