// Package extendai implements the Extend parse adapter.
package extendai

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
	defaultBaseURL = "https://api.extend.ai"
	apiVersion     = "2025-04-21"
)

// Parser uploads a document to Extend and parses it with page chunking.
type Parser struct {
	client     *parser.Client
	agenticOCR bool
	timeout    time.Duration
}

var _ port.ParseAdapter = (*Parser)(nil)

// NewParser creates an Extend adapter from provider config.
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
	agentic, err := parser.OptBool(cfg, "agentic_ocr", false)
	if err != nil {
		return nil, err
	}
	header := parser.BearerHeader(cfg.APIKey)
	header.Set("x-extend-api-version", apiVersion)
	timeout := parser.Timeout(cfg)
	return &Parser{
		client:     parser.NewClient(domain.ProviderExtendAI, baseURL, timeout, header),
		agenticOCR: agentic,
		timeout:    timeout,
	}, nil
}

func (p *Parser) Provider() string { return domain.ProviderExtendAI }

type uploadResponse struct {
	File struct {
		ID string `json:"id"`
	} `json:"file"`
}

type parseResponse struct {
	ID      string         `json:"id"`
	Status  string         `json:"status"`
	Chunks  []any          `json:"chunks"`
	Usage   map[string]any `json:"usage"`
	Metrics map[string]any `json:"metrics"`
}

func (p *Parser) Parse(ctx context.Context, artifactPath string) (*domain.ParseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	start := time.Now()

	var upload uploadResponse
	if err := p.client.UploadFile(ctx, "/files/upload", "file", artifactPath, nil, &upload); err != nil {
		return nil, fmt.Errorf("uploading to extendai: %w", err)
	}
	if upload.File.ID == "" {
		return nil, fmt.Errorf("extendai upload returned no file id")
	}

	var resp parseResponse
	if err := p.client.DoJSON(ctx, http.MethodPost, "/parse", p.parseRequest(upload.File.ID), &resp); err != nil {
		return nil, fmt.Errorf("running extendai parse: %w", err)
	}

	pages := normalize.ExtendAI{}.Normalize(normalize.AsSegments(resp.Chunks))

	usage := map[string]any{}
	for k, v := range resp.Usage {
		usage[k] = v
	}
	metrics := normalize.Segment(resp.Metrics)
	pageCount, ok := metrics.Int("pageCount", "page_count")
	if !ok || pageCount <= 0 {
		pageCount = len(pages)
	}
	processingMS, _ := metrics.Int("processingTimeMs", "processing_time_ms")

	usage["num_pages"] = len(pages)
	usage["agentic_ocr"] = p.agenticOCR
	usage["mode"] = p.mode()
	usage["page_count"] = pageCount
	usage["processing_time_ms"] = processingMS

	raw := map[string]any{
		"parser_run_id": resp.ID,
		"status":        resp.Status,
		"total_chunks":  len(resp.Chunks),
	}

	return domain.NewParseResult(domain.ProviderExtendAI, pages, time.Since(start), usage, raw), nil
}

func (p *Parser) mode() string {
	if p.agenticOCR {
		return "agentic-ocr"
	}
	return "standard"
}

func (p *Parser) parseRequest(fileID string) map[string]any {
	return map[string]any{
		"file": map[string]any{"fileId": fileID},
		"config": map[string]any{
			"target":           "markdown",
			"chunkingStrategy": map[string]any{"type": "page"},
			"blockOptions": map[string]any{
				"figures": map[string]any{
					"enabled":                    true,
					"figureImageClippingEnabled": true,
				},
				"tables": map[string]any{
					"enabled":                        true,
					"targetFormat":                   "markdown",
					"tableHeaderContinuationEnabled": false,
				},
				"text": map[string]any{"signatureDetectionEnabled": true},
			},
			"advancedOptions": map[string]any{
				"pageRotationEnabled": true,
				"agenticOcrEnabled":   p.agenticOCR,
			},
		},
	}
}
