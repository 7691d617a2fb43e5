package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/catalog"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/config"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/engine"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/evaluation"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/events"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/logging"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/source"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/store"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/survey"
)

var (
	configPath string
	jsonOutput bool

	exitFunc = os.Exit
)

var rootCmd = &cobra.Command{
	Use:   "soilrisk",
	Short: "Soil corrosion risk evaluation with versioned reports",
	Long: `soilrisk rates the field readings of a surveyed zone against a soil
corrosion standard, sums the ratings into a total, classifies the total
into a risk class and stores the result as a new immutable version.

Every evaluation of the same zone and standard appends a version; earlier
versions are never modified and can be re-rendered at any time.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitFunc(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default $SOILRISK_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

// #region app
// app is the wired object graph shared by every subcommand.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	store     *store.Store
	field     *source.FieldStore
	catalog   *catalog.Catalog
	publisher events.Publisher
	engine    *engine.Engine
}

func openApp(withEvents bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logging.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	st, err := store.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	field, err := source.NewFieldStore(st.DB())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open field store: %w", err)
	}
	cat, err := catalog.Load(cfg.Catalog.Dir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	for _, issue := range cat.Issues() {
		log.Warn("catalog issue", slog.String("issue", issue.String()))
	}

	var pub events.Publisher = events.Noop{}
	if withEvents && cfg.Events.Enabled && len(cfg.Events.Brokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, log)
		log.Info("publishing version events", slog.String("topic", cfg.Events.Topic))
	}

	standards := source.CatalogStandards{Catalog: cat}
	versions := evaluation.NewVersionStore(st, standards,
		evaluation.WithRetry(evaluation.RetryPolicy{MaxAttempts: cfg.Versions.MaxAttempts, Backoff: cfg.Versions.Backoff}),
		evaluation.WithLogger(log),
		evaluation.WithAudit(evaluation.AuditTo(st.DB())),
		evaluation.WithPublisher(pub),
	)

	identity := source.StaticIdentity{User: survey.User{
		ID:          cfg.Identity.ID,
		DisplayName: cfg.Identity.DisplayName,
		Email:       cfg.Identity.Email,
	}}

	return &app{
		cfg:       cfg,
		log:       log,
		store:     st,
		field:     field,
		catalog:   cat,
		publisher: pub,
		engine: engine.New(engine.Deps{
			Versions:   versions,
			Datapoints: field,
			Zones:      field,
			Standards:  standards,
			Identity:   identity,
			Logger:     log,
		}),
	}, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.log.Warn("close publisher", slog.Any("error", err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", slog.Any("error", err))
	}
}

// withApp opens the app, runs fn and closes the app again.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
// #endregion app

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
