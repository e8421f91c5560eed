// Package pricing turns provider usage into credit and USD costs.
package pricing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"ragrace/internal/domain"
)

// ModelPrice is one pricing tier. Which match keys apply depends on the provider.
type ModelPrice struct {
	ParseMode      string  `mapstructure:"parse_mode"`
	Model          string  `mapstructure:"model"`
	Mode           string  `mapstructure:"mode"`
	CreditsPerPage float64 `mapstructure:"credits_per_page"`
}

// ProviderPricing is a provider's credit price and tiers.
type ProviderPricing struct {
	USDPerCredit float64      `mapstructure:"usd_per_credit"`
	Models       []ModelPrice `mapstructure:"models"`
}

// Table maps provider names to their pricing.
type Table map[string]ProviderPricing

// Default per-page credit rates used when no tier matches.
const (
	fallbackLlamaIndexCredits   = 10
	fallbackUnstructuredCredits = 10
	fallbackExtendAICredits     = 2
)

// LoadTable reads a YAML pricing table.
func LoadTable(path string) (Table, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading pricing table %s: %w", path, err)
	}
	table := Table{}
	if err := v.Unmarshal(&table); err != nil {
		return nil, fmt.Errorf("decoding pricing table %s: %w", path, err)
	}
	return table, nil
}

// Calculate computes one provider's cost from its usage bag.
func Calculate(provider string, usage map[string]any, table Table) (*domain.ProviderCost, error) {
	if table == nil {
		return nil, domain.ErrPricingUnavailable
	}
	pp := table[provider]
	numPages := number(usage["num_pages"])

	var (
		perPage float64
		credits float64
		details = map[string]any{"num_pages": numPages}
		reason  string
	)

	switch provider {
	case domain.ProviderLlamaIndex:
		parseMode, model := text(usage["parse_mode"]), text(usage["model"])
		details["parse_mode"] = parseMode
		details["model"] = model
		if tier, ok := pp.find(func(m ModelPrice) bool { return m.ParseMode == parseMode && m.Model == model }); ok {
			perPage = tier.CreditsPerPage
		} else {
			perPage = fallbackLlamaIndexCredits
			reason = fmt.Sprintf("no tier for parse_mode=%q model=%q", parseMode, model)
		}
		credits = numPages * perPage

	case domain.ProviderReducto:
		mode := text(usage["mode"])
		if mode == "" {
			mode = "standard"
		}
		details["mode"] = mode
		details["summarize_figures"] = usage["summarize_figures"] == true
		if tier, ok := pp.find(func(m ModelPrice) bool { return m.Mode == mode }); ok {
			perPage = tier.CreditsPerPage
			credits = numPages * perPage
		} else if apiCredits, ok := usage["credits"]; ok {
			credits = number(apiCredits)
			perPage = 1
			if numPages > 0 {
				perPage = credits / numPages
			}
			reason = fmt.Sprintf("no tier for mode=%q, using API-reported credits", mode)
		} else {
			perPage = 1
			credits = numPages
			reason = fmt.Sprintf("no tier for mode=%q and no API credits, using 1 credit per page", mode)
		}

	case domain.ProviderUnstructured:
		mode := text(usage["mode"])
		if mode == "" {
			mode = text(usage["strategy"])
		}
		details["mode"] = mode
		if tier, ok := pp.find(func(m ModelPrice) bool { return m.Mode == mode }); ok {
			perPage = tier.CreditsPerPage
		} else {
			perPage = fallbackUnstructuredCredits
			reason = fmt.Sprintf("no tier for mode=%q", mode)
		}
		credits = numPages * perPage

	case domain.ProviderExtendAI:
		mode := text(usage["mode"])
		details["mode"] = mode
		details["agentic_ocr"] = usage["agentic_ocr"] == true
		if tier, ok := pp.find(func(m ModelPrice) bool { return m.Mode == mode }); ok {
			perPage = tier.CreditsPerPage
		} else {
			perPage = fallbackExtendAICredits
			reason = fmt.Sprintf("no tier for mode=%q", mode)
		}
		credits = numPages * perPage

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, provider)
	}

	details["credits_per_page"] = perPage
	if reason != "" {
		details["pricing_fallback"] = true
		details["fallback_reason"] = reason
	}

	return &domain.ProviderCost{
		Provider:     provider,
		Credits:      credits,
		USDPerCredit: pp.USDPerCredit,
		TotalUSD:     credits * pp.USDPerCredit,
		Details:      details,
	}, nil
}

// CalculateAll computes costs for every result, ordered by provider name.
// A single failing provider fails the whole calculation.
func CalculateAll(results map[string]*domain.ParseResult, table Table) (*domain.CostSummary, error) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	summary := &domain.CostSummary{Costs: make([]domain.ProviderCost, 0, len(names))}
	for _, name := range names {
		r := results[name]
		if r == nil {
			continue
		}
		cost, err := Calculate(name, r.Usage, table)
		if err != nil {
			return nil, fmt.Errorf("calculating cost for %s: %w", name, err)
		}
		summary.Costs = append(summary.Costs, *cost)
		summary.TotalUSD += cost.TotalUSD
	}
	return summary, nil
}

func (p ProviderPricing) find(match func(ModelPrice) bool) (ModelPrice, bool) {
	for _, m := range p.Models {
		if match(m) {
			return m, true
		}
	}
	return ModelPrice{}, false
}

func number(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
