package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/autobank/internal/api"
	"github.com/Veraticus/autobank/internal/engine"
	"github.com/Veraticus/autobank/internal/model"
	"github.com/Veraticus/autobank/internal/scheduler"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the periodic scheduler",
		Long: `Starts the REST API for managing rules and launches the scheduler that
periodically fetches transactions and evaluates rules against them.`,
		RunE: runServe,
	}

	cmd.Flags().Bool("demo", false, "use built-in demo accounts instead of the bank API")
	cmd.Flags().Int("port", 8080, "API listen port")
	cmd.Flags().Duration("interval", scheduler.DefaultInterval, "poll interval")

	_ = viper.BindPFlag("server.demo", cmd.Flags().Lookup("demo"))
	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("scheduler.interval", cmd.Flags().Lookup("interval"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("failed to close storage", "error", closeErr)
		}
	}()

	demo := viper.GetBool("server.demo")
	bankClient, err := initBankClient(demo)
	if err != nil {
		return err
	}
	if demo {
		logger.Info("running in demo mode with built-in accounts")
	}

	ruleEngine := engine.New(store, bankClient, logger)

	schedConfig := scheduler.DefaultConfig()
	if interval := viper.GetDuration("scheduler.interval"); interval > 0 {
		schedConfig.Interval = interval
	}
	sched := scheduler.New(ruleEngine, schedConfig, logger)

	go func() {
		if runErr := sched.Run(ctx); runErr != nil && ctx.Err() == nil {
			logger.Error("scheduler exited", "error", runErr)
		}
	}()

	server := api.NewServer(store, bankClient, sched, logger)
	addr := fmt.Sprintf(":%d", viper.GetInt("server.port"))

	start := time.Now()
	startEntry := model.NewAuditEntry(model.AuditServerStarted, "system", map[string]any{"addr": addr, "demo": demo})
	if auditErr := store.LogAudit(ctx, startEntry); auditErr != nil {
		logger.Error("failed to write audit entry", "error", auditErr)
	}

	err = server.ListenAndServe(ctx, addr)
	logger.Info("server stopped", "uptime", time.Since(start))

	stopEntry := model.NewAuditEntry(model.AuditServerStopped, "system", map[string]any{"uptime": time.Since(start).String()})
	if auditErr := store.LogAudit(context.Background(), stopEntry); auditErr != nil {
		logger.Error("failed to write audit entry", "error", auditErr)
	}

	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
