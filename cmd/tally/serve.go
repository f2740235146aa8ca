package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/tally/internal/api"
	"github.com/Veraticus/tally/internal/certs"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// maintenanceTimeout bounds one scheduled maintenance run.
const maintenanceTimeout = 30 * time.Minute

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the categorization API over HTTP",
		Long: `Serve the engine as a JSON API under /api/v1.

When serve.retrain_schedule is set (a cron spec such as "0 3 * * *"), the
server periodically applies rules to pending transactions, retrains the
model and auto-categorizes with it.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default from serve.addr)")
	cmd.Flags().String("rate", "", "per-client rate limit such as 100-M (default from serve.rate)")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate")
	_ = viper.BindPFlag("serve.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("serve.rate", cmd.Flags().Lookup("rate"))
	_ = viper.BindPFlag("serve.tls", cmd.Flags().Lookup("tls"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	serveCfg, err := config.LoadServeConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := api.NewServer(a.engine, serveCfg.Rate)
	if err != nil {
		return err
	}

	if serveCfg.RetrainSchedule != "" {
		scheduler, err := newScheduler(ctx, a.engine, serveCfg)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	if !serveCfg.TLS {
		return server.Run(ctx, serveCfg.Addr)
	}

	cert, err := certs.NewStore(serveCfg.CertDir, serveCfg.TLSHosts...).Load()
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	return server.RunTLS(ctx, serveCfg.Addr, cert)
}

// newScheduler registers the maintenance job on the configured schedule.
func newScheduler(ctx context.Context, eng *engine.Engine, cfg config.ServeConfig) (*cron.Cron, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.TimeZone, err)
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.RetrainSchedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()
		if err := runMaintenance(runCtx, eng); err != nil {
			slog.Error("Scheduled maintenance failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to schedule maintenance %q: %w", cfg.RetrainSchedule, err)
	}

	slog.Info("Maintenance scheduler configured", "schedule", cfg.RetrainSchedule, "timezone", loc.String())
	return c, nil
}

// runMaintenance applies rules to pending transactions, retrains the model
// and, if training succeeded, auto-categorizes with it.
func runMaintenance(ctx context.Context, eng *engine.Engine) error {
	start := time.Now()

	ruled, err := eng.ApplyRulesToPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply rules: %w", err)
	}

	trained, err := eng.Train(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to train model: %w", err)
	}
	if !trained.Success {
		slog.Info("Maintenance finished without retraining",
			"rule_updates", ruled,
			"reason", trained.Error,
			"duration", time.Since(start))
		return nil
	}

	auto, err := eng.AutoCategorize(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to auto-categorize: %w", err)
	}

	slog.Info("Maintenance finished",
		"rule_updates", ruled,
		"samples", trained.Samples,
		"accuracy", trained.Accuracy,
		"auto_categorized", auto.Categorized,
		"duration", time.Since(start))
	return nil
}
