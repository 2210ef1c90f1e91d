package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fredhutch/phiscan/internal/config"
	"github.com/fredhutch/phiscan/internal/engine"
	"github.com/fredhutch/phiscan/internal/extract"
	"github.com/fredhutch/phiscan/internal/modeladapter"
	"github.com/fredhutch/phiscan/internal/models"
	"github.com/fredhutch/phiscan/internal/risk"
)

var (
	configPath         string
	includeOccurrences bool
	outputJSON         bool
)

var rootCmd = &cobra.Command{
	Use:   "phiscan",
	Short: "Classify documents for protected health information",
	Long:  "phiscan runs the PHI detection engine locally: rule patterns, optional model services, and risk scoring over files on disk.",
}

var classifyCmd = &cobra.Command{
	Use:   "classify <file>...",
	Short: "Classify one or more files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the active detection patterns",
	RunE:  runPatterns,
}

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	classifyCmd.Flags().BoolVar(&includeOccurrences, "occurrences", false, "include occurrence spans in output")
	classifyCmd.Flags().BoolVar(&outputJSON, "json", false, "emit raw JSON results")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(patternsCmd)
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	lib, err := cfg.BuildLibrary(nil)
	if err != nil {
		return nil, err
	}

	var (
		ner modeladapter.EntityRecognizer
		zs  modeladapter.ZeroShotClassifier
	)
	if cfg.Models.NER.Enabled {
		ner = modeladapter.NewHTTPNERClient(cfg.Models.NER.URL)
	}
	if cfg.Models.ZeroShot.Enabled {
		zs = modeladapter.NewHTTPZeroShotClient(cfg.Models.ZeroShot.URL, cfg.Models.ZeroShot.Labels)
	}
	adapter := modeladapter.New(ner, zs, modeladapter.Config{
		MaxConcurrent: cfg.Models.MaxConcurrent,
		CallTimeout:   cfg.Models.CallTimeout,
	}, nil)

	return engine.New(lib.Snapshot(), adapter, risk.NewScorer(cfg.Risk),
		engine.Config{Workers: cfg.Engine.Workers}, nil), nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	exitHigh := false

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("reading file")
			continue
		}

		extracted, err := extract.FromBytes(path, data)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("extraction failed")
			continue
		}

		doc := models.Document{
			ID:         uuid.New(),
			Filename:   path,
			Text:       extracted.Text,
			Extraction: extracted.Metadata,
		}
		result := eng.Classify(ctx, doc, includeOccurrences)

		if outputJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		} else {
			printResult(result)
		}

		if result.RiskLevel == models.RiskHigh {
			exitHigh = true
		}
	}

	if exitHigh {
		os.Exit(2)
	}
	return nil
}

func printResult(res models.ClassificationResult) {
	ev := log.Info()
	if res.ContainsPHI {
		ev = log.Warn()
	}
	ev.Str("file", res.Filename).
		Bool("contains_phi", res.ContainsPHI).
		Str("risk", string(res.RiskLevel)).
		Int("identifiers", res.TotalIdentifiers).
		Float64("confidence", res.Confidence).
		Bool("rule_only", res.RuleOnly).
		Msg("classified")

	for cat, n := range res.IdentifiersByCategory {
		fmt.Printf("  %-14s %d\n", cat, n)
	}
	for _, occ := range res.Occurrences {
		fmt.Printf("  [%d:%d) %s via %s (%.2f)\n", occ.Start, occ.End, occ.Category, occ.Source, occ.Score)
	}
}

func runPatterns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lib, err := cfg.BuildLibrary(nil)
	if err != nil {
		return err
	}
	snap := lib.Snapshot()

	for _, cat := range snap.Categories() {
		ps := snap.For(cat)
		if len(ps) == 0 {
			continue
		}
		fmt.Printf("%s (priority %d, weight %d)\n", cat, snap.CategoryPriority(cat), snap.RiskWeight(cat))
		for _, p := range ps {
			gate := ""
			if p.ContextRequired {
				gate = " [context-gated]"
			}
			fmt.Printf("  %s%s\n", p.Expr, gate)
		}
	}
	return nil
}
