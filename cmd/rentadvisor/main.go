// Package main implements the rentadvisor CLI: analyze a declared
// property set against both rental expense claim methods, and ingest
// guideline documents into the knowledge index.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taxease/rentadvisor/internal/advisor"
	"github.com/taxease/rentadvisor/internal/classifier"
	"github.com/taxease/rentadvisor/internal/config"
	"github.com/taxease/rentadvisor/internal/knowledge"
	"github.com/taxease/rentadvisor/internal/logging"
	"github.com/taxease/rentadvisor/internal/oracle"
	"github.com/taxease/rentadvisor/internal/pipeline"
	"github.com/taxease/rentadvisor/internal/research"
	"github.com/taxease/rentadvisor/internal/tax"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rentadvisor",
	Short: "Rental income tax method advisor",
	Long: `rentadvisor analyzes declared rental properties under both the actual
expense claims method and the simplified (15% deemed expense) claims
method, and recommends the one with the lower total taxable rent.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/rentadvisor/config.yaml)")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(ingestCmd)
}

// app bundles everything a command needs after wiring.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *knowledge.Store
}

// newApp loads config and builds the shared dependencies.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	embedder, err := knowledge.NewOpenAIEmbedder(cfg.Knowledge.Embedder)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	store, err := knowledge.NewStore(cfg.Knowledge.Store, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge index: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: store}, nil
}

// newPipeline wires the three analysis stages.
func (a *app) newPipeline() (*pipeline.Pipeline, error) {
	orc, err := oracle.NewClient(a.cfg.Oracle)
	if err != nil {
		return nil, fmt.Errorf("creating oracle client: %w", err)
	}

	var searcher research.Searcher
	if a.cfg.Classifier.FallbackSearch {
		client, err := research.NewSerpClient(a.cfg.Research, a.logger)
		if err != nil {
			return nil, fmt.Errorf("creating research client: %w", err)
		}
		searcher = client
	}

	cls := classifier.New(a.store, searcher, orc, a.cfg.Classifier, a.logger)
	adv := advisor.New(a.store, orc, a.cfg.Advisor, a.logger)
	return pipeline.New(cls, tax.NewEngine(), adv, a.logger), nil
}
