package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/autobank/internal/engine"
)

func pollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one evaluation cycle and exit",
		Long: `Fetches transactions for every account with enabled rules, evaluates the
rules, and executes any resulting transfers. Useful from cron or for
testing rules without the long-running server.`,
		RunE: runPoll,
	}

	cmd.Flags().Bool("demo", false, "use built-in demo accounts instead of the bank API")
	_ = viper.BindPFlag("server.demo", cmd.Flags().Lookup("demo"))

	return cmd
}

func runPoll(cmd *cobra.Command, _ []string) error {
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

	bankClient, err := initBankClient(viper.GetBool("server.demo"))
	if err != nil {
		return err
	}

	stats, err := engine.New(store, bankClient, logger).EvaluateAll(ctx)
	if err != nil {
		return fmt.Errorf("evaluation cycle failed: %w", err)
	}

	fmt.Printf("Polled %d account(s): %d transaction(s) seen, %d transfer(s) executed, %d failed\n",
		stats.AccountsPolled, stats.TransactionsSeen, stats.TransfersExecuted, stats.TransfersFailed)
	return nil
}
