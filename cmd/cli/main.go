package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gometa/adapters/bias"
	"gometa/adapters/pooling"
	"gometa/adapters/postgres"
	"gometa/adapters/tabular"
	"gometa/app"
	"gometa/domain/meta"
	"gometa/internal/analysis"
	"gometa/internal/config"
	"gometa/internal/testkit"
	"gometa/ports"
	"gometa/trimfill"
	"gometa/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gometa",
		Short: "Trim-and-fill publication bias correction for meta-analysis",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newDescribeCmd(),
		newGenerateCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var estimator string
	var side string
	var biasMethod string
	var centerModel string
	var level float64
	var hakn bool
	var prediction bool
	var maxIterations int
	var label string
	var measure string
	var jsonOut string

	cmd := &cobra.Command{
		Use:   "analyze [study-table]",
		Short: "Run trim-and-fill on a CSV or Excel study table",
		Long: `Run the Duval-Tweedie trim-and-fill analysis on a study table.

The table needs an effect column and a standard-error column; a label column
is optional. CSV, XLSX and XLSM files are accepted.

Example: gometa analyze studies.csv --estimator L0 --level 0.95 --hakn`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.AnalysisRequest{
				Estimator:     estimator,
				Side:          side,
				BiasMethod:    biasMethod,
				CenterModel:   centerModel,
				Level:         level,
				HartungKnapp:  hakn,
				Prediction:    prediction,
				MaxIterations: maxIterations,
			}

			return runAnalyze(cmd.Context(), args[0], label, measure, jsonOut, req)
		},
	}

	cmd.Flags().StringVar(&estimator, "estimator", "L0", "Missing-study estimator: L0, R0 or Q0")
	cmd.Flags().StringVar(&side, "side", "", "Force the missing side (left or right, default: detect)")
	cmd.Flags().StringVar(&biasMethod, "bias-method", "egger", "Asymmetry test for side detection: egger or begg")
	cmd.Flags().StringVar(&centerModel, "center-model", "fixed", "Pooled model centering each trim round: fixed or random")
	cmd.Flags().Float64Var(&level, "level", 0.95, "Confidence level for pooled estimates")
	cmd.Flags().BoolVar(&hakn, "hakn", false, "Apply the Hartung-Knapp adjustment")
	cmd.Flags().BoolVar(&prediction, "prediction", false, "Report a prediction interval")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 50, "Cap on trim iterations")
	cmd.Flags().StringVar(&label, "label", "", "Label for the analysis (default: file name)")
	cmd.Flags().StringVar(&measure, "measure", "", "Summary measure of the effects (SMD, MD, OR, ...)")
	cmd.Flags().StringVar(&jsonOut, "json", "", "Also write the full result as JSON to this file")

	return cmd
}

func runAnalyze(ctx context.Context, path, label, measure, jsonOut string, req app.AnalysisRequest) error {
	fmt.Printf("Analyzing %s...\n", path)

	set, err := tabular.NewReader().Read(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to read study table: %w", err)
	}
	if label != "" {
		set.Label = label
	}
	if measure != "" {
		set.Measure = measure
	}

	// Initialize test kit (in production, this would use real adapters)
	kit, err := testkit.NewTestKit()
	if err != nil {
		return fmt.Errorf("failed to initialize test kit: %w", err)
	}

	req.Set = set
	result, err := kit.AnalysisService().Run(ctx, req)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	printResult(result)

	if jsonOut != "" {
		jsonData, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		if err := os.WriteFile(jsonOut, jsonData, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", jsonOut, err)
		}
		fmt.Printf("\nFull result saved to: %s\n", jsonOut)
	}

	return nil
}

func printResult(result *meta.Result) {
	fmt.Printf("\n=== TRIM-AND-FILL RESULTS ===\n")
	fmt.Printf("Analysis ID: %s\n", result.ID)
	if result.Label != "" {
		fmt.Printf("Label: %s\n", result.Label)
	}
	fmt.Printf("Observed Studies: %d\n", result.K)
	fmt.Printf("Imputed Studies: %d\n", result.K0)
	fmt.Printf("Missing Side: %s\n", result.Side)
	fmt.Printf("Estimator: %s\n", result.Estimator)
	fmt.Printf("Iterations: %d\n", result.Iterations)

	if result.Bias != nil {
		fmt.Printf("\n=== ASYMMETRY TEST (%s) ===\n", strings.ToUpper(result.Bias.Method))
		fmt.Printf("Bias: %.4f (SE %.4f)\n", result.Bias.Bias, result.Bias.SEBias)
		fmt.Printf("Statistic: %.4f (df %d)\n", result.Bias.Statistic, result.Bias.DF)
		fmt.Printf("P-Value: %.4f\n", result.Bias.P)
	}

	if result.Original != nil {
		printPooling("ORIGINAL POOLING", result.Original)
	}
	if result.Adjusted != nil {
		printPooling("ADJUSTED POOLING", result.Adjusted)
	}

	if result.K0 > 0 && result.Filled != nil {
		fmt.Printf("\n=== IMPUTED STUDIES ===\n")
		for i, st := range result.Filled.Studies[result.K:] {
			fmt.Printf("%d. %s: %.4f (SE %.4f)\n", i+1, st.Label, st.Effect, st.SE)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\n⚠️  WARNINGS:\n")
		for _, warning := range result.Warnings {
			fmt.Printf("• %s\n", warning)
		}
	}
}

func printPooling(title string, p *meta.Pooling) {
	fmt.Printf("\n=== %s (k=%d) ===\n", title, p.K)
	fmt.Printf("Fixed:  %.4f [%.4f, %.4f] p=%.4f\n",
		p.Fixed.Effect, p.Fixed.Lower, p.Fixed.Upper, p.Fixed.P)
	fmt.Printf("Random: %.4f [%.4f, %.4f] p=%.4f\n",
		p.Random.Effect, p.Random.Lower, p.Random.Upper, p.Random.P)
	fmt.Printf("Tau2: %.4f  I2: %.1f%%  Q: %.2f (df %d, p=%.4f)\n",
		p.Het.Tau2, p.Het.I2*100, p.Het.Q, p.Het.DF, p.Het.P)
	if p.Predict != nil {
		fmt.Printf("Prediction Interval: [%.4f, %.4f]\n", p.Predict.Lower, p.Predict.Upper)
	}
}

func newDescribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe [study-table]",
		Short: "Profile a study table without running any correction",
		Long: `Summarize the effects and precisions in a study table: central tendency,
spread, skewness and outlier count. Useful as a sanity check before analysis.

Example: gometa describe studies.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(cmd.Context(), args[0])
		},
	}

	return cmd
}

func runDescribe(ctx context.Context, path string) error {
	set, err := tabular.NewReader().Read(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to read study table: %w", err)
	}

	profile, err := analysis.Describe(set)
	if err != nil {
		return fmt.Errorf("failed to profile study set: %w", err)
	}

	fmt.Printf("\n=== STUDY SET PROFILE ===\n")
	fmt.Printf("Label: %s\n", set.Label)
	fmt.Printf("Studies: %d (%d estimable)\n", profile.Studies, profile.Estimable)

	fmt.Printf("\nEffects:\n")
	fmt.Printf("  Mean: %.4f  Median: %.4f  SD: %.4f\n",
		profile.Effect.Mean, profile.Effect.Median, profile.Effect.StdDev)
	fmt.Printf("  Range: [%.4f, %.4f]  IQR: [%.4f, %.4f]\n",
		profile.Effect.Min, profile.Effect.Max, profile.Effect.Q25, profile.Effect.Q75)
	fmt.Printf("  Skewness: %.4f  Outliers: %d\n", profile.Effect.Skewness, profile.Effect.Outliers)

	fmt.Printf("\nStandard Errors:\n")
	fmt.Printf("  Range: [%.4f, %.4f]  Median: %.4f\n", profile.SE.Min, profile.SE.Max, profile.SE.Median)
	fmt.Printf("  Precision Ratio: %.1f\n", profile.SE.Ratio)

	return nil
}

func newGenerateCmd() *cobra.Command {
	var studies int
	var missing int
	var effect float64
	var tau float64
	var minSE float64
	var maxSE float64
	var seed int64
	var measure string
	var out string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic funnel with suppressed studies",
		Long: `Generate a seeded random-effects funnel and censor its smallest effects,
mimicking publication bias. The observed studies are written as a study
table that analyze can read back.

Example: gometa generate --studies 20 --missing 5 --seed 42 --out synth.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(studies, missing, effect, tau, minSE, maxSE, seed, measure, out)
		},
	}

	cmd.Flags().IntVar(&studies, "studies", 25, "Number of studies before suppression")
	cmd.Flags().IntVar(&missing, "missing", 5, "Number of smallest effects to suppress")
	cmd.Flags().Float64Var(&effect, "effect", 0.5, "True underlying effect")
	cmd.Flags().Float64Var(&tau, "tau", 0.1, "Between-study heterogeneity (SD scale)")
	cmd.Flags().Float64Var(&minSE, "min-se", 0.05, "Smallest study standard error")
	cmd.Flags().Float64Var(&maxSE, "max-se", 0.4, "Largest study standard error")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic output")
	cmd.Flags().StringVar(&measure, "measure", "SMD", "Summary measure label")
	cmd.Flags().StringVar(&out, "out", "funnel.csv", "Output path (.csv or .xlsx)")

	return cmd
}

func runGenerate(studies, missing int, effect, tau, minSE, maxSE float64, seed int64, measure, out string) error {
	cfg := testkit.FunnelConfig{
		Studies:    studies,
		Suppressed: missing,
		Effect:     effect,
		Tau:        tau,
		MinSE:      minSE,
		MaxSE:      maxSE,
		Seed:       seed,
		Measure:    measure,
	}

	ds, err := testkit.NewFunnelGenerator(cfg).Generate()
	if err != nil {
		return fmt.Errorf("failed to generate funnel: %w", err)
	}

	switch strings.ToLower(filepath.Ext(out)) {
	case ".csv":
		err = testkit.WriteCSV(out, ds)
	case ".xlsx":
		err = testkit.WriteXLSX(out, ds)
	default:
		return fmt.Errorf("unsupported output extension %q (use .csv or .xlsx)", filepath.Ext(out))
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Printf("Wrote %d observed studies to %s\n", ds.Observed.Len(), out)
	fmt.Printf("Suppressed %d of %d studies from the left tail (seed %d)\n",
		len(ds.Suppressed), ds.Complete.Len(), seed)

	return nil
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API server",
		Long: `Start the HTTP API. Configuration is read from the environment (a .env
file is honored); --port overrides PORT.

Example: gometa serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (overrides PORT)")

	return cmd
}

func runServe(port string) error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if port != "" {
		appConfig.Server.Port = port
	}

	var archive ports.ArchivePort
	if appConfig.Database.Enabled() {
		db, err := sqlx.Connect("postgres", appConfig.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		archive = postgres.NewAnalysisRepository(db)
		log.Println("Archiving analyses to PostgreSQL")
	} else {
		archive = testkit.NewMemoryArchive()
		log.Println("No DATABASE_URL configured, archiving analyses in memory")
	}

	analyzer := trimfill.NewAnalyzer(pooling.NewEngine(), bias.NewEgger(), bias.NewBegg())

	analysisService := app.NewAnalysisService(analyzer, archive)
	analysisService.SetDefaults(app.AnalysisRequest{
		Estimator:     appConfig.Analysis.Estimator,
		BiasMethod:    appConfig.Analysis.BiasMethod,
		Level:         appConfig.Analysis.Level,
		MaxIterations: appConfig.Analysis.MaxIterations,
		HartungKnapp:  appConfig.Analysis.HartungKnapp,
		Prediction:    appConfig.Analysis.Prediction,
	})

	batchService := app.NewBatchService(analysisService, appConfig.Analysis.MaxConcurrent)

	apiApp := ui.NewApp(ui.Config{
		Port:         appConfig.Server.Port,
		ReadTimeout:  appConfig.Server.ReadTimeout,
		WriteTimeout: appConfig.Server.WriteTimeout,
	}, analysisService, batchService, tabular.NewReader())

	return apiApp.Start()
}
