package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ragrace/internal/app"
	"ragrace/internal/battleexport"
	"ragrace/internal/domain"
)

const exportPageSize = 100

func newExportCmd() *cobra.Command {
	var (
		format  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export battle history as CSV or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != battleexport.FormatCSV && format != battleexport.FormatXLSX {
				return fmt.Errorf("unsupported format %q", format)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var items []domain.BattleHistoryItem
			for offset := 0; ; offset += exportPageSize {
				page, total, err := a.Battles.ListBattles(cmd.Context(), offset, exportPageSize)
				if err != nil {
					return err
				}
				items = append(items, page...)
				if len(page) < exportPageSize || offset+len(page) >= total {
					break
				}
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			return writeExport(w, format, items)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", battleexport.FormatCSV, "csv or xlsx")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func writeExport(w io.Writer, format string, items []domain.BattleHistoryItem) error {
	if format == battleexport.FormatXLSX {
		return battleexport.WriteXLSX(w, items)
	}
	if _, err := w.Write(battleexport.BOM); err != nil {
		return err
	}
	cw := battleexport.NewWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return err
	}
	if err := cw.WriteBattles(items); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
