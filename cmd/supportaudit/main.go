package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/supportaudit/internal/config"
	"github.com/fentz26/supportaudit/internal/controlplane"
	"github.com/fentz26/supportaudit/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "supportaudit",
	Short:   "supportaudit - policy compliance audits for support interactions",
	Long:    `supportaudit scores customer-support transcripts against company policy and keeps one audit record per transcript in a local ledger.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// config init must work even when the existing file is broken.
		if cmd.Name() == "init" {
			return nil
		}
		return loadConfig()
	},
	SilenceUsage: true,
}

var (
	configPath string
	dbOverride string

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.supportaudit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "", "Path to SQLite ledger (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbOverride != "" {
		c.DBPath = dbOverride
	}
	cfg = c

	slog.SetDefault(logging.New(cfg.Log.Format, cfg.Log.Level))
	return nil
}

func main() {
	controlplane.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
