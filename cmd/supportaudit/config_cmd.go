package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/supportaudit/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration path and values",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	shown := *cfg
	if shown.Scoring.Gemini.APIKey != "" {
		shown.Scoring.Gemini.APIKey = "********"
	}
	if shown.Scoring.Ollama.APIKey != "" {
		shown.Scoring.Ollama.APIKey = "********"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s\n", path)
	fmt.Fprintf(out, "db_path: %s\nlisten: %s\n", shown.DBPath, shown.Listen)
	fmt.Fprintf(out, "scoring.provider: %s\nscoring.timeout: %s\n", shown.Scoring.Provider, shown.Scoring.Timeout)
	fmt.Fprintf(out, "scoring.gemini.model: %s\nscoring.gemini.api_key: %s\n", shown.Scoring.Gemini.Model, shown.Scoring.Gemini.APIKey)
	fmt.Fprintf(out, "scoring.ollama.base_url: %s\nscoring.ollama.model: %s\n", shown.Scoring.Ollama.BaseURL, shown.Scoring.Ollama.Model)
	fmt.Fprintf(out, "batch.max_workers: %d\nlog.format: %s\nlog.level: %s\n", shown.Batch.MaxWorkers, shown.Log.Format, shown.Log.Level)
	return nil
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}
