package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CanonicalPage is one page of normalized provider output.
type CanonicalPage struct {
	PageNumber int            `json:"page_number"`
	Markdown   string         `json:"markdown"`
	Images     []string       `json:"images"`
	Metadata   map[string]any `json:"metadata"`
}

// ParseResult is a single provider's normalized output for one invocation.
type ParseResult struct {
	Provider       string          `json:"provider"`
	TotalPages     int             `json:"total_pages"`
	Pages          []CanonicalPage `json:"pages"`
	ProcessingTime float64         `json:"processing_time"`
	Usage          map[string]any  `json:"usage"`
	RawResponse    map[string]any  `json:"raw_response,omitempty"`
}

// NewParseResult builds a ParseResult whose TotalPages always matches its pages.
func NewParseResult(provider string, pages []CanonicalPage, elapsed time.Duration, usage, raw map[string]any) *ParseResult {
	if usage == nil {
		usage = map[string]any{}
	}
	return &ParseResult{
		Provider:       provider,
		TotalPages:     len(pages),
		Pages:          pages,
		ProcessingTime: elapsed.Seconds(),
		Usage:          usage,
		RawResponse:    raw,
	}
}

// BattleAssignment pairs an anonymous label with the provider behind it.
type BattleAssignment struct {
	Label    string `json:"label"`
	Provider string `json:"provider"`
}

// Comparison holds the outcome of one fan-out across providers.
type Comparison struct {
	ArtifactPath string                    `json:"-"`
	Derived      bool                      `json:"-"`
	PageNumber   *int                      `json:"page_number,omitempty"`
	Providers    []string                  `json:"providers"`
	Configs      map[string]map[string]any `json:"configs,omitempty"`
	Results      map[string]*ParseResult   `json:"results"`
	Failures     map[string]string         `json:"failures,omitempty"`
}

// BattleMetadata is the answer key and context stored alongside a battle.
type BattleMetadata struct {
	Configs        map[string]map[string]any `json:"configs"`
	ProviderLabels map[string]string         `json:"provider_labels"`
	LabelProviders map[string]string         `json:"label_providers"`
	Assignments    []BattleAssignment        `json:"assignments"`
	BattleMode     bool                      `json:"battle_mode"`
}

// ProviderRun is one provider's stored contribution to a battle.
type ProviderRun struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	BattleID       uuid.UUID       `db:"battle_id" json:"battle_id"`
	Provider       string          `db:"provider" json:"provider"`
	Label          string          `db:"label" json:"label"`
	Content        json.RawMessage `db:"content" json:"content"`
	TotalPages     int             `db:"total_pages" json:"total_pages"`
	Usage          json.RawMessage `db:"usage" json:"usage"`
	CostCredits    *float64        `db:"cost_credits" json:"cost_credits"`
	CostUSD        *float64        `db:"cost_usd" json:"cost_usd"`
	ProcessingTime float64         `db:"processing_time" json:"processing_time"`
	Error          string          `db:"error" json:"error,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// BattleRecord is the durable form of a battle run.
type BattleRecord struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	DocumentName string          `db:"document_name" json:"document_name"`
	ArtifactURL  string          `db:"artifact_url" json:"artifact_url"`
	PageNumber   int             `db:"page_number" json:"page_number"`
	Status       BattleStatus    `db:"status" json:"status"`
	Metadata     json.RawMessage `db:"metadata" json:"metadata"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	Runs         []ProviderRun   `db:"-" json:"runs"`
}

// Feedback is the single human judgment recorded for a battle.
type Feedback struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	BattleID        uuid.UUID  `db:"battle_id" json:"battle_id"`
	PreferredLabels []string   `db:"-" json:"preferred_labels"`
	Comment         string     `db:"comment" json:"comment"`
	RevealedAt      *time.Time `db:"revealed_at" json:"revealed_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// ProviderCost is the cost breakdown for one provider's usage.
type ProviderCost struct {
	Provider     string         `json:"provider"`
	Credits      float64        `json:"credits"`
	USDPerCredit float64        `json:"usd_per_credit"`
	TotalUSD     float64        `json:"total_usd"`
	Details      map[string]any `json:"details"`
}

// CostSummary aggregates provider costs for one comparison.
type CostSummary struct {
	Costs    []ProviderCost `json:"costs"`
	TotalUSD float64        `json:"total_usd"`
}

// BattleHistoryItem is a row in the battle history listing.
type BattleHistoryItem struct {
	BattleID        uuid.UUID          `json:"battle_id"`
	DocumentName    string             `json:"document_name"`
	PageNumber      int                `json:"page_number"`
	Status          BattleStatus       `json:"status"`
	Assignments     []BattleAssignment `json:"assignments"`
	PreferredLabels []string           `json:"preferred_labels"`
	Winner          string             `json:"winner"`
	Comment         string             `json:"comment"`
	CreatedAt       time.Time          `json:"created_at"`
}

// BattleDetail is the full view of one battle with its results and feedback.
type BattleDetail struct {
	Battle      *BattleRecord      `json:"battle"`
	Assignments []BattleAssignment `json:"assignments"`
	Feedback    *Feedback          `json:"feedback,omitempty"`
}
