// Package llamaindex implements the LlamaParse (LlamaCloud) adapter.
package llamaindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ragrace/internal/config"
	"ragrace/internal/domain"
	"ragrace/internal/normalize"
	"ragrace/internal/parser"
	"ragrace/internal/port"
)

const (
	defaultBaseURL   = "https://api.cloud.llamaindex.ai"
	defaultParseMode = "parse_page_with_agent"
	defaultModel     = "openai-gpt-4-1-mini"
	agentParseMode   = "parse_page_with_agent"

	defaultPollInterval = 2 * time.Second
)

var parseModes = []string{
	"parse_page_without_llm",
	"parse_page_with_llm",
	"parse_page_with_lvm",
	"parse_page_with_agent",
	"parse_document_with_llm",
	"parse_document_with_agent",
}

// ErrJobFailed is returned when LlamaParse reports a terminal failure status.
var ErrJobFailed = errors.New("llamaindex parse job failed")

// Parser uploads a document to LlamaParse, waits for the job and normalizes
// the JSON result.
type Parser struct {
	client       *parser.Client
	parseMode    string
	model        string
	timeout      time.Duration
	pollInterval time.Duration
}

var _ port.ParseAdapter = (*Parser)(nil)

// NewParser creates a LlamaParse adapter from provider config.
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
	mode, err := parser.OptOneOf(cfg, "parse_mode", defaultParseMode, parseModes...)
	if err != nil {
		return nil, err
	}
	interval := defaultPollInterval
	if ms, err := strconv.Atoi(parser.OptString(cfg, "poll_interval_ms", "")); err == nil && ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}
	timeout := parser.Timeout(cfg)
	return &Parser{
		client:       parser.NewClient(domain.ProviderLlamaIndex, baseURL, timeout, parser.BearerHeader(cfg.APIKey)),
		parseMode:    mode,
		model:        parser.OptString(cfg, "model", defaultModel),
		timeout:      timeout,
		pollInterval: interval,
	}, nil
}

func (p *Parser) Provider() string { return domain.ProviderLlamaIndex }

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error_message"`
}

type resultResponse struct {
	Pages       []any          `json:"pages"`
	JobMetadata map[string]any `json:"job_metadata"`
}

func (p *Parser) Parse(ctx context.Context, artifactPath string) (*domain.ParseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	start := time.Now()

	fields := map[string]string{
		"parse_mode":            p.parseMode,
		"output_tables_as_HTML": "true",
		"high_res_ocr":          "true",
	}
	if p.parseMode == agentParseMode {
		fields["model"] = p.model
	}

	var job jobResponse
	if err := p.client.UploadFile(ctx, "/api/v1/parsing/upload", "file", artifactPath, fields, &job); err != nil {
		return nil, fmt.Errorf("uploading to llamaindex: %w", err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("llamaindex upload returned no job id")
	}

	if err := p.waitForJob(ctx, job.ID); err != nil {
		return nil, err
	}

	var result resultResponse
	if err := p.client.DoJSON(ctx, http.MethodGet, "/api/v1/parsing/job/"+job.ID+"/result/json", nil, &result); err != nil {
		return nil, fmt.Errorf("fetching llamaindex result: %w", err)
	}

	pages := normalize.LlamaIndex{}.Normalize(normalize.AsSegments(result.Pages))

	usage := map[string]any{
		"parse_mode": p.parseMode,
		"model":      p.model,
		"num_pages":  len(pages),
	}
	if p.parseMode != agentParseMode {
		usage["model"] = nil
	}
	raw := map[string]any{
		"job_id":       job.ID,
		"job_metadata": result.JobMetadata,
		"total_pages":  len(result.Pages),
	}

	return domain.NewParseResult(domain.ProviderLlamaIndex, pages, time.Since(start), usage, raw), nil
}

func (p *Parser) waitForJob(ctx context.Context, id string) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		var job jobResponse
		if err := p.client.DoJSON(ctx, http.MethodGet, "/api/v1/parsing/job/"+id, nil, &job); err != nil {
			return fmt.Errorf("polling llamaindex job %s: %w", id, err)
		}
		switch job.Status {
		case "SUCCESS":
			return nil
		case "ERROR", "CANCELED", "CANCELLED":
			return fmt.Errorf("%w: job %s status %s: %s", ErrJobFailed, id, job.Status, job.Error)
		}
		slog.Debug("llamaindex.Parser.waitForJob: job pending", "job_id", id, "status", job.Status)

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for llamaindex job %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
