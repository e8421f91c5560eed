package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ragrace/internal/domain"
	"ragrace/internal/pricing"
)

func newCostCmd() *cobra.Command {
	var pricingPath string

	cmd := &cobra.Command{
		Use:   "cost <results.json>",
		Short: "Price the results written by compare",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var in compareOutput
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("decoding %s: %w", args[0], err)
			}
			if len(in.Results) == 0 {
				return fmt.Errorf("%s holds no results", args[0])
			}

			if pricingPath == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				pricingPath = cfg.Pricing.Path
			}
			table, err := pricing.LoadTable(pricingPath)
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrPricingUnavailable, err)
			}

			summary, err := pricing.CalculateAll(in.Results, table)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&pricingPath, "pricing", "", "Pricing YAML (defaults to RAGRACE_PRICING_PATH)")
	return cmd
}
