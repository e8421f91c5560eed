// Package reducto implements the Reducto parse adapter.
package reducto

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
	defaultBaseURL = "https://platform.reducto.ai"
	defaultMode    = "standard"
)

// Parser uploads a document to Reducto and maps its semantic chunks to pages.
type Parser struct {
	client           *parser.Client
	mode             string
	summarizeFigures bool
	timeout          time.Duration
}

var _ port.ParseAdapter = (*Parser)(nil)

// NewParser creates a Reducto adapter from provider config.
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
	mode, err := parser.OptOneOf(cfg, "mode", defaultMode, "standard", "complex")
	if err != nil {
		return nil, err
	}
	summarize, err := parser.OptBool(cfg, "summarize_figures", false)
	if err != nil {
		return nil, err
	}
	timeout := parser.Timeout(cfg)
	return &Parser{
		client:           parser.NewClient(domain.ProviderReducto, baseURL, timeout, parser.BearerHeader(cfg.APIKey)),
		mode:             mode,
		summarizeFigures: summarize || mode == "complex",
		timeout:          timeout,
	}, nil
}

func (p *Parser) Provider() string { return domain.ProviderReducto }

type uploadResponse struct {
	FileID string `json:"file_id"`
}

type parseResponse struct {
	JobID    string         `json:"job_id"`
	Duration float64        `json:"duration"`
	Usage    map[string]any `json:"usage"`
	Result   struct {
		Type   string `json:"type"`
		URL    string `json:"url"`
		Chunks []any  `json:"chunks"`
	} `json:"result"`
}

type urlResult struct {
	Chunks []any `json:"chunks"`
}

func (p *Parser) Parse(ctx context.Context, artifactPath string) (*domain.ParseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	start := time.Now()

	var upload uploadResponse
	if err := p.client.UploadFile(ctx, "/upload", "file", artifactPath, nil, &upload); err != nil {
		return nil, fmt.Errorf("uploading to reducto: %w", err)
	}
	if upload.FileID == "" {
		return nil, fmt.Errorf("reducto upload returned no file id")
	}

	var resp parseResponse
	if err := p.client.DoJSON(ctx, http.MethodPost, "/parse", p.parseRequest(upload.FileID), &resp); err != nil {
		return nil, fmt.Errorf("running reducto parse: %w", err)
	}

	chunks := resp.Result.Chunks
	// Large results are returned by reference.
	if resp.Result.Type == "url" && resp.Result.URL != "" {
		var fetched urlResult
		if err := p.client.DoJSON(ctx, http.MethodGet, resp.Result.URL, nil, &fetched); err != nil {
			return nil, fmt.Errorf("fetching reducto result: %w", err)
		}
		chunks = fetched.Chunks
	}

	pages := normalize.Reducto{}.Normalize(normalize.AsSegments(chunks))

	usage := map[string]any{
		"mode":              p.mode,
		"summarize_figures": p.summarizeFigures,
		"num_pages":         len(pages),
	}
	if n, ok := normalize.Segment(resp.Usage).Int("num_pages"); ok && n > 0 {
		usage["num_pages"] = n
	}
	if credits, ok := resp.Usage["credits"].(float64); ok {
		usage["credits"] = credits
	}

	raw := map[string]any{
		"job_id":       resp.JobID,
		"total_chunks": len(chunks),
		"duration":     resp.Duration,
	}

	return domain.NewParseResult(domain.ProviderReducto, pages, time.Since(start), usage, raw), nil
}

func (p *Parser) parseRequest(fileID string) map[string]any {
	return map[string]any{
		"input": fileID,
		"enhance": map[string]any{
			"agentic":           []any{},
			"summarize_figures": p.summarizeFigures,
		},
		"retrieval": map[string]any{
			"chunking":            map[string]any{"chunk_mode": "variable"},
			"embedding_optimized": true,
			"filter_blocks":       []any{},
		},
		"formatting": map[string]any{
			"add_page_markers":    true,
			"table_output_format": "dynamic",
			"merge_tables":        false,
		},
		"settings": map[string]any{
			"ocr_system": "standard",
			"timeout":    int(p.timeout.Seconds()),
		},
	}
}
