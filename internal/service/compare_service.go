package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"ragrace/internal/battle"
	"ragrace/internal/domain"
	"ragrace/internal/port"
)

// CompareInput is the DTO for a multi-provider comparison.
type CompareInput struct {
	ArtifactPath string
	Providers    []string
	Configs      map[string]map[string]any
	PageNumber   *int
}

// ProviderStatus describes one selectable provider.
type ProviderStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// AdapterFactory builds provider adapters. parser.Registry implements it.
type AdapterFactory interface {
	NewAdapter(name string, overrides map[string]any) (port.ParseAdapter, error)
	Providers() []string
	Configured(name string) bool
}

// CompareService defines the fan-out contract.
type CompareService interface {
	Compare(ctx context.Context, input *CompareInput) (*domain.Comparison, error)
	// Release removes any single-page artifact derived for cmp.
	Release(cmp *domain.Comparison)
	PageCount(ctx context.Context, path string) (int, error)
	AvailableProviders() []ProviderStatus
}

type compareService struct {
	adapters AdapterFactory
	pages    port.PageExtractor
	policy   domain.FailurePolicy
}

// NewCompareService creates a new CompareService implementation.
func NewCompareService(adapters AdapterFactory, pages port.PageExtractor, policy domain.FailurePolicy) CompareService {
	if policy == "" {
		policy = domain.FailureAllOrNothing
	}
	return &compareService{
		adapters: adapters,
		pages:    pages,
		policy:   policy,
	}
}

func (s *compareService) Compare(ctx context.Context, input *CompareInput) (*domain.Comparison, error) {
	providers := battle.DedupeProviders(input.Providers)
	if len(providers) == 0 {
		return nil, domain.ErrNoProviders
	}

	// Every adapter is built before any network work so configuration
	// errors fail the whole call up front.
	adapters := make([]port.ParseAdapter, len(providers))
	configs := make(map[string]map[string]any, len(providers))
	for i, name := range providers {
		overrides := input.Configs[name]
		adapter, err := s.adapters.NewAdapter(name, overrides)
		if err != nil {
			return nil, fmt.Errorf("configuring %s: %w", name, err)
		}
		adapters[i] = adapter
		if overrides == nil {
			overrides = map[string]any{}
		}
		configs[name] = overrides
	}

	cmp := &domain.Comparison{
		ArtifactPath: input.ArtifactPath,
		PageNumber:   input.PageNumber,
		Providers:    providers,
		Configs:      configs,
		Results:      make(map[string]*domain.ParseResult, len(providers)),
	}

	if input.PageNumber != nil {
		derived, err := s.pages.ExtractPage(ctx, input.ArtifactPath, *input.PageNumber)
		if err != nil {
			return nil, fmt.Errorf("isolating page %d: %w", *input.PageNumber, err)
		}
		cmp.ArtifactPath = derived
		cmp.Derived = true
	}

	var err error
	if s.policy == domain.FailurePartial {
		err = s.dispatchPartial(ctx, adapters, cmp)
	} else {
		err = s.dispatchAll(ctx, adapters, cmp)
	}
	if err != nil {
		s.Release(cmp)
		return nil, err
	}
	return cmp, nil
}

// dispatchAll runs every adapter concurrently; the first failure cancels the
// rest and fails the comparison.
func (s *compareService) dispatchAll(ctx context.Context, adapters []port.ParseAdapter, cmp *domain.Comparison) error {
	results := make([]*domain.ParseResult, len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range adapters {
		g.Go(func() error {
			res, err := adapter.Parse(gctx, cmp.ArtifactPath)
			if err != nil {
				return fmt.Errorf("%s: %w", adapter.Provider(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("compareService.Compare: provider failed, aborting comparison", "error", err)
		return err
	}
	for i, adapter := range adapters {
		cmp.Results[adapter.Provider()] = results[i]
	}
	return nil
}

// dispatchPartial runs every adapter to completion and records failures per
// provider. It fails only when no provider succeeded.
func (s *compareService) dispatchPartial(ctx context.Context, adapters []port.ParseAdapter, cmp *domain.Comparison) error {
	results := make([]*domain.ParseResult, len(adapters))
	errs := make([]error, len(adapters))
	var g errgroup.Group
	for i, adapter := range adapters {
		g.Go(func() error {
			results[i], errs[i] = adapter.Parse(ctx, cmp.ArtifactPath)
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for i, adapter := range adapters {
		name := adapter.Provider()
		if errs[i] != nil {
			slog.Warn("compareService.Compare: provider failed", "provider", name, "error", errs[i])
			if cmp.Failures == nil {
				cmp.Failures = map[string]string{}
			}
			cmp.Failures[name] = errs[i].Error()
			failed = append(failed, fmt.Errorf("%s: %w", name, errs[i]))
			continue
		}
		cmp.Results[name] = results[i]
	}
	if len(cmp.Results) == 0 {
		return fmt.Errorf("%w: %w", domain.ErrAllProvidersFailed, errors.Join(failed...))
	}
	return nil
}

func (s *compareService) Release(cmp *domain.Comparison) {
	if cmp == nil || !cmp.Derived || cmp.ArtifactPath == "" {
		return
	}
	if err := os.Remove(cmp.ArtifactPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("compareService.Release: removing derived artifact", "path", cmp.ArtifactPath, "error", err)
	}
}

func (s *compareService) PageCount(ctx context.Context, path string) (int, error) {
	return s.pages.PageCount(ctx, path)
}

func (s *compareService) AvailableProviders() []ProviderStatus {
	names := s.adapters.Providers()
	sort.Strings(names)
	out := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		out = append(out, ProviderStatus{Name: name, Configured: s.adapters.Configured(name)})
	}
	return out
}
