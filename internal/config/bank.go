// Package config provides configuration utilities for the application.
package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/autobank/internal/bank"
)

// LoadBankConfig loads bank API credentials. Precedence:
// 1. Viper configuration (from config file or AUTOBANK_ env vars)
// 2. Direct environment variables (SB1_*)
// 3. Defaults
func LoadBankConfig() bank.AuthConfig {
	cfg := bank.AuthConfig{}

	if v := viper.GetString("bank.client_id"); v != "" {
		cfg.ClientID = v
	}
	if v := viper.GetString("bank.client_secret"); v != "" {
		cfg.ClientSecret = v
	}
	if v := viper.GetString("bank.financial_institution"); v != "" {
		cfg.FinancialInstitution = v
	}
	if v := viper.GetString("bank.token_file"); v != "" {
		cfg.TokenFile = ExpandPath(v)
	}

	if cfg.ClientID == "" {
		cfg.ClientID = os.Getenv("SB1_CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = os.Getenv("SB1_CLIENT_SECRET")
	}
	if cfg.FinancialInstitution == "" {
		cfg.FinancialInstitution = os.Getenv("SB1_FIN_INST")
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = ExpandPath("~/.local/share/autobank/token.json")
	}

	return cfg
}
