package cmd

import (
	"os"

	"github.com/klokku/pennywise/internal/config"
	"github.com/spf13/cobra"
)

var flagConfigPath string

var rootCmd = &cobra.Command{
	Use:          "pennywise",
	Short:        "Recurring expenses, pending confirmations and budget alerts",
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", config.DefaultPath, "Path to the YAML configuration file")
}

func loadConfig() (config.Application, error) {
	return config.Load(flagConfigPath)
}
