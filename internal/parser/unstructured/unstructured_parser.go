// Package unstructured implements the Unstructured partition API adapter.
package unstructured

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ragrace/internal/config"
	"ragrace/internal/domain"
	"ragrace/internal/normalize"
	"ragrace/internal/parser"
	"ragrace/internal/port"
)

const (
	defaultBaseURL  = "https://api.unstructuredapp.io"
	defaultStrategy = "auto"
	partitionPath   = "/general/v0/general"
)

// Parser partitions a document with Unstructured and groups elements by page.
type Parser struct {
	client           *parser.Client
	strategy         string
	vlmModel         string
	vlmModelProvider string
	normalizer       normalize.Unstructured
	timeout          time.Duration
}

var _ port.ParseAdapter = (*Parser)(nil)

// NewParser creates an Unstructured adapter from provider config.
func NewParser(cfg *config.ProviderConfig) (*Parser, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return newParser(cfg, baseURL)
}

// NewParserWithEndpoint creates an adapter against a custom base URL (used for testing).
func NewParserWithEndpoint(cfg *config.ProviderConfig, endpoint string) (*Parser, error) {
	return newParser(cfg, endpoint)
}

// Factory adapts NewParser to parser.ProviderFactory.
func Factory(cfg *config.ProviderConfig) (port.ParseAdapter, error) {
	return NewParser(cfg)
}

func newParser(cfg *config.ProviderConfig, baseURL string) (*Parser, error) {
	strategy, err := parser.OptOneOf(cfg, "strategy", defaultStrategy, "fast", "hi_res", "auto", "vlm")
	if err != nil {
		return nil, err
	}
	tableFormat, err := parser.OptOneOf(cfg, "table_format", normalize.TableFormatHTML,
		normalize.TableFormatHTML, normalize.TableFormatMarkdown)
	if err != nil {
		return nil, err
	}
	vlmModel := parser.OptString(cfg, "vlm_model", "")
	vlmProvider := parser.OptString(cfg, "vlm_model_provider", "")
	if strategy == "vlm" && (vlmModel == "" || vlmProvider == "") {
		return nil, fmt.Errorf("%w: vlm strategy requires vlm_model and vlm_model_provider", domain.ErrInvalidProviderConfig)
	}

	header := http.Header{}
	header.Set("unstructured-api-key", cfg.APIKey)
	timeout := parser.Timeout(cfg)
	return &Parser{
		client:           parser.NewClient(domain.ProviderUnstructured, baseURL, timeout, header),
		strategy:         strategy,
		vlmModel:         vlmModel,
		vlmModelProvider: vlmProvider,
		normalizer:       normalize.Unstructured{TableFormat: tableFormat},
		timeout:          timeout,
	}, nil
}

func (p *Parser) Provider() string { return domain.ProviderUnstructured }

func (p *Parser) Parse(ctx context.Context, artifactPath string) (*domain.ParseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	start := time.Now()

	fields := map[string]string{
		"strategy":           p.strategy,
		"coordinates":        "true",
		"unique_element_ids": "true",
	}
	if p.strategy == "vlm" {
		fields["vlm_model"] = p.vlmModel
		fields["vlm_model_provider"] = p.vlmModelProvider
	}

	var elements []any
	if err := p.client.UploadFile(ctx, partitionPath, "files", artifactPath, fields, &elements); err != nil {
		return nil, fmt.Errorf("partitioning with unstructured: %w", err)
	}

	pages := p.normalizer.Normalize(normalize.AsSegments(elements))

	usage := map[string]any{
		"num_pages":      len(pages),
		"strategy":       p.strategy,
		"mode":           p.strategy,
		"total_elements": len(elements),
	}
	if p.strategy == "vlm" {
		usage["vlm_model"] = p.vlmModel
		usage["vlm_model_provider"] = p.vlmModelProvider
	}

	raw := map[string]any{"total_elements": len(elements)}

	return domain.NewParseResult(domain.ProviderUnstructured, pages, time.Since(start), usage, raw), nil
}
