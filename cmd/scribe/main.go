package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	journalcmd "github.com/rzbill/scribe/internal/cmd/journal"
	cfgpkg "github.com/rzbill/scribe/internal/config"
	"github.com/rzbill/scribe/internal/runtime"
	logpkg "github.com/rzbill/scribe/pkg/log"
)

func main() {
	var (
		configPath string
		dataDir    string
		backendVal string
		logLevel   string
		logFormat  string
	)

	loadConfig := func() (cfgpkg.Config, error) {
		cfg, err := cfgpkg.Load(configPath)
		if err != nil {
			return cfgpkg.Config{}, err
		}
		cfgpkg.FromEnv(&cfg)
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if backendVal != "" {
			cfg.Backend = backendVal
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		if err := cfg.Validate(); err != nil {
			return cfgpkg.Config{}, err
		}
		return cfg, nil
	}

	rootCmd := &cobra.Command{
		Use:   "scribe",
		Short: "Scribe journal CLI",
		Long:  "Scribe is an asynchronous persistence journal. This CLI operates on a local store.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := logpkg.ApplyConfig(&cfg.Log)
			if err != nil {
				return err
			}
			// Pebble and kafka-go log via the stdlib
			logpkg.RedirectStdLog(logger)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SCRIBE_CONFIG"), "Config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (defaults to the OS application data directory)")
	rootCmd.PersistentFlags().StringVar(&backendVal, "backend", "", "Storage backend: pebble|sqlite")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text|json")

	rootCmd.AddCommand(journalcmd.NewJournalCommand(loadConfig))

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check the local store answers reads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := runtime.Open(runtime.Options{Config: cfg})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := rt.CheckHealth(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	rootCmd.AddCommand(healthCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
