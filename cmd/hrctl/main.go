// Command hrctl runs employee imports and payslip batches from a terminal
// against the same database as the API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hrctl",
		Short:         "HR admin command line tools",
		Long:          "hrctl imports employee spreadsheets, ingests payslip batches and issues operator tokens.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("operator", "hrctl", "Operator name recorded in the activity log")
	root.AddCommand(newImportCmd(), newTokenCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
