package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ragrace/internal/app"
	"ragrace/internal/domain"
	"ragrace/internal/pricing"
	"ragrace/internal/service"
)

type compareOutput struct {
	Results  map[string]*domain.ParseResult `json:"results"`
	Failures map[string]string              `json:"failures,omitempty"`
	Cost     *domain.CostSummary            `json:"cost,omitempty"`
}

func newCompareCmd() *cobra.Command {
	var (
		providers []string
		page      int
		configs   string
		withCost  bool
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "compare <file.pdf>",
		Short: "Parse a PDF with several providers and print the canonical results",
		Example: `  ragrace compare report.pdf --providers llamaindex,reducto --page 3
  ragrace compare report.pdf -p unstructured --configs '{"unstructured":{"strategy":"hi_res"}}' --cost`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(providers) == 0 {
				return domain.ErrNoProviders
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			input := &service.CompareInput{ArtifactPath: args[0], Providers: providers}
			if page > 0 {
				input.PageNumber = &page
			}
			if configs != "" {
				if err := json.Unmarshal([]byte(configs), &input.Configs); err != nil {
					return fmt.Errorf("%w: --configs: %v", domain.ErrInvalidProviderConfig, err)
				}
			}

			workDir, err := os.MkdirTemp("", "ragrace-pages-")
			if err != nil {
				return err
			}
			defer func() { _ = os.RemoveAll(workDir) }()

			compare := app.NewCompareService(cfg, workDir)
			cmp, err := compare.Compare(cmd.Context(), input)
			if err != nil {
				return err
			}
			defer compare.Release(cmp)

			out := compareOutput{Results: cmp.Results, Failures: cmp.Failures}
			if withCost {
				summary, err := pricing.CalculateAll(cmp.Results, app.LoadPricing(cfg.Pricing.Path))
				if err != nil {
					return err
				}
				out.Cost = summary
			}

			if outPath == "" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			if err := writeJSON(f, out); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", outPath, strings.Join(providers, ", "))
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&providers, "providers", "p", nil, "Providers to run (comma-separated)")
	cmd.Flags().IntVar(&page, "page", 0, "Parse only this 1-based page")
	cmd.Flags().StringVar(&configs, "configs", "", "Per-provider option overrides as JSON")
	cmd.Flags().BoolVar(&withCost, "cost", false, "Include the cost of each result")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write JSON to this file instead of stdout")
	return cmd
}
