package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Veraticus/autobank/internal/bank"
	"github.com/Veraticus/autobank/internal/config"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the bank",
		Long: `Manages OAuth credentials for the bank API. Run "auth login" to get the
authorization URL, then "auth exchange <code>" with the code from the
redirect to store tokens locally.`,
	}

	cmd.AddCommand(authLoginCmd())
	cmd.AddCommand(authExchangeCmd())

	return cmd
}

func authLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Print the authorization URL to visit",
		RunE: func(_ *cobra.Command, _ []string) error {
			provider, err := newTokenProvider()
			if err != nil {
				return err
			}

			state := uuid.NewString()
			fmt.Println("Visit this URL in your browser to authorize access:")
			fmt.Println()
			fmt.Println(provider.AuthorizationURL(state))
			fmt.Println()
			fmt.Println("After authorizing, run: autobank auth exchange <code>")
			return nil
		},
	}
}

func authExchangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code for tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := newTokenProvider()
			if err != nil {
				return err
			}

			if err := provider.ExchangeCode(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Println("✓ Tokens stored. You can now run: autobank serve")
			return nil
		},
	}
}

func newTokenProvider() (*bank.FileTokenProvider, error) {
	cfg := config.LoadBankConfig()
	provider, err := bank.NewFileTokenProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bank credentials: %w", err)
	}
	return provider, nil
}
