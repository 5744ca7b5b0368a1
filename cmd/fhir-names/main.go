// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the fhir-names CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/fhir-names/internal/fhir"
	"github.com/pdiddy/fhir-names/internal/secrets"
	"github.com/pdiddy/fhir-names/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is configured in PersistentPreRunE from log.level.
var logger = zerolog.Nop()

// rootCmd is the base command for the fhir-names CLI.
var rootCmd = &cobra.Command{
	Use:   "fhir-names",
	Short: "Print patient names from paged FHIR family-name searches",
	Long: heredoc.Doc(`
		fhir-names searches a FHIR R4 server for patients by family name and
		prints, for every record returned, the name-variant whose family matches
		the search term together with the patient's birth date.

		Searches are sorted by given name and fetched 100 records per page.
		Results can be stored in a local SQLite database for comparing runs.
	`),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(viper.GetString("log.level"))

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./fhir-names.yaml or ~/.config/fhir-names/fhir-names.yaml)")
	pf.String("base-url", fhir.DefaultBaseURL, "FHIR server base URL")
	pf.Duration("timeout", fhir.DefaultTimeout, "HTTP request timeout")
	pf.Int("max-retries", 5, "retries on HTTP 429 responses")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("db", "", "SQLite database for storing runs (empty disables storage)")

	viper.BindPFlag("server.base_url", pf.Lookup("base-url"))
	viper.BindPFlag("server.timeout", pf.Lookup("timeout"))
	viper.BindPFlag("server.max_retries", pf.Lookup("max-retries"))
	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("store.path", pf.Lookup("db"))

	viper.SetDefault("server.user_agent", fhir.DefaultUserAgent)
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("fhir-names")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "fhir-names"))
		}
	}

	viper.SetEnvPrefix("FHIR_NAMES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger returns a console logger on stderr at level. Unknown levels
// fall back to info.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// loadConfig assembles the typed configuration from viper and the
// loaded secrets.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	cfg.Server.BearerToken = secrets.Lookup(loadedSecrets, secrets.BearerTokenKey, os.Getenv("FHIR_NAMES_BEARER_TOKEN"))
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
