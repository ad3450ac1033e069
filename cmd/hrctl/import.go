package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/noah-isme/hr-admin-api/internal/importer"
	"github.com/noah-isme/hr-admin-api/internal/service"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Run bulk imports",
	}
	cmd.AddCommand(newImportEmployeesCmd(), newImportPayslipsCmd())
	return cmd
}

func newImportEmployeesCmd() *cobra.Command {
	var (
		skipConflicts bool
		dryRun        bool
	)
	cmd := &cobra.Command{
		Use:   "employees <file>",
		Short: "Import employees from a CSV or XLSX spreadsheet",
		Long: "Imports employees from a spreadsheet. Rows matching an active employee by e-mail or matricula replace " +
			"that employee unless --skip-conflicts is set. --dry-run prints the classification and writes nothing.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			name := filepath.Base(args[0])
			if dryRun {
				attempt, err := a.imports.Analyze(cmd.Context(), name, data)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), attempt)
			}

			actor := operatorActor(cmd)
			session, err := a.imports.Preview(cmd.Context(), actor, name, data)
			if err != nil {
				return err
			}
			if session.Attempt.Stage == importer.StageConflict {
				if session, err = a.imports.SetAllDecisions(cmd.Context(), session.ID, !skipConflicts); err != nil {
					return err
				}
				if session, err = a.imports.Commit(cmd.Context(), actor, session.ID); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), session.Attempt.Report)
		},
	}
	cmd.Flags().BoolVar(&skipConflicts, "skip-conflicts", false, "Keep existing employees when a row conflicts with them")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Classify the file without writing anything")
	return cmd
}

func newImportPayslipsCmd() *cobra.Command {
	var replaceDuplicates bool
	cmd := &cobra.Command{
		Use:   "payslips <file>...",
		Short: "Ingest payslip PDFs named <matricula>_<MM>_<YYYY>.pdf",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			files := make([]service.PayslipFile, 0, len(args))
			for _, arg := range args {
				f, err := os.Open(arg)
				if err != nil {
					return fmt.Errorf("open %s: %w", arg, err)
				}
				defer f.Close()
				files = append(files, service.PayslipFile{Name: filepath.Base(arg), Content: f})
			}

			actor := operatorActor(cmd)
			session, err := a.payslips.Stage(cmd.Context(), actor, files)
			if err != nil {
				return err
			}
			if replaceDuplicates {
				for i, item := range session.Batch.Items {
					if item.Status != importer.PayslipDuplicate {
						continue
					}
					if session, err = a.payslips.SetReplace(cmd.Context(), session.ID, i, true); err != nil {
						return err
					}
				}
			}
			if session, err = a.payslips.Commit(cmd.Context(), actor, session.ID); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), session.Report)
		},
	}
	cmd.Flags().BoolVar(&replaceDuplicates, "replace-duplicates", false, "Overwrite payslips already stored for the same period")
	return cmd
}
