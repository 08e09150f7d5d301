package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/reviewloop/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "reviewloop",
	Short: "Plan, review and revise a blog post proposal",
	Long: `reviewloop drives a Planner and a Reviewer through a supervised correction loop
until the proposal is approved or the turn budget is spent.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration YAML file")
	rootCmd.PersistentFlags().String("store", "", "Step store driver (memory, sqlite, mysql, redis)")
	rootCmd.PersistentFlags().String("dsn", "", "Store connection string or file path")
	rootCmd.PersistentFlags().String("provider", "", "Planner/Reviewer backend (reference, anthropic, openai, google)")
	rootCmd.PersistentFlags().String("model", "", "Model name for LLM providers")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log engine events to stderr")
	rootCmd.PersistentFlags().Bool("trace", false, "Record OpenTelemetry spans and log them to stderr")
}

// loadConfig reads the --config file and applies the persistent flag
// overrides on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Driver = v
	}
	if v, _ := cmd.Flags().GetString("dsn"); v != "" {
		cfg.Store.DSN = v
	}
	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Provider.Name = v
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Provider.Model = v
	}
	if v, _ := cmd.Flags().GetBool("trace"); v {
		cfg.Telemetry.Tracing = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
