package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ragrace/internal/pdf"
)

func newPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages <file.pdf>",
		Short: "Print the page count of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := pdf.NewExtractor(os.TempDir()).PageCount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
}
