package cmd

import (
	"fmt"

	"github.com/klokku/pennywise/internal/app"
	"github.com/klokku/pennywise/pkg/trigger"
	"github.com/spf13/cobra"
)

var flagProcessKind string

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one processing pass for every user and exit",
	Long:  "Materializes due recurring expenses and marks pending ones past their date as overdue.",
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVar(&flagProcessKind, "kind", trigger.KindManualRefresh.String(), "Trigger kind recorded for the pass (start, manual)")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, _ []string) error {
	kind, err := trigger.ParseKind(flagProcessKind)
	if err != nil {
		return err
	}
	if kind == trigger.KindForegroundResume || kind == trigger.KindExpenseMutation {
		return fmt.Errorf("kind %q cannot be used from the command line", flagProcessKind)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	application, err := app.NewApplication(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	return app.ProcessAllUsers(cmd.Context(), application.Dependencies(), kind)
}
