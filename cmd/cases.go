package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/triagemap/internal/store"
)

var casesCSVPath string

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Manage the case database",
}

var casesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import diagnosed cases from CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if casesCSVPath == "" {
			return eris.New("--csv is required")
		}
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		f, err := os.Open(casesCSVPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close() //nolint:errcheck

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := store.ImportCases(ctx, st, f)
		if err != nil {
			return eris.Wrap(err, "import csv")
		}

		zap.L().Info("import complete",
			zap.Int("imported", n),
			zap.String("csv", casesCSVPath),
		)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the case tables and seed the disease catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("migration complete", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	casesImportCmd.Flags().StringVar(&casesCSVPath, "csv", "", "path to CSV file (required)")
	_ = casesImportCmd.MarkFlagRequired("csv")
	casesCmd.AddCommand(casesImportCmd)
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(migrateCmd)
}
