// Package app wires configuration into the services, stores and HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"ragrace/internal/battle"
	"ragrace/internal/config"
	"ragrace/internal/domain"
	"ragrace/internal/handler"
	"ragrace/internal/parser"
	"ragrace/internal/parser/extendai"
	"ragrace/internal/parser/llamaindex"
	"ragrace/internal/parser/reducto"
	"ragrace/internal/parser/unstructured"
	"ragrace/internal/pdf"
	"ragrace/internal/port"
	"ragrace/internal/pricing"
	firestorerepo "ragrace/internal/repository/firestore"
	"ragrace/internal/repository/memory"
	"ragrace/internal/repository/postgres"
	"ragrace/internal/router"
	"ragrace/internal/service"
	gcsstorage "ragrace/internal/storage/gcs"
	localstorage "ragrace/internal/storage/local"
	s3storage "ragrace/internal/storage/s3"
)

// App holds the wired services and the HTTP engine.
type App struct {
	Router  *gin.Engine
	Uploads service.UploadService
	Compare service.CompareService
	Battles service.BattleService
	Pricing pricing.Table

	closers []func() error
}

// NewParserRegistry registers every supported provider against cfg.Providers.
func NewParserRegistry(cfg *config.Config) *parser.Registry {
	reg := parser.NewRegistry(cfg.Providers)
	reg.Register(domain.ProviderLlamaIndex, func(c *config.ProviderConfig) (port.ParseAdapter, error) {
		return llamaindex.NewParser(c)
	})
	reg.Register(domain.ProviderReducto, func(c *config.ProviderConfig) (port.ParseAdapter, error) {
		return reducto.NewParser(c)
	})
	reg.Register(domain.ProviderUnstructured, func(c *config.ProviderConfig) (port.ParseAdapter, error) {
		return unstructured.NewParser(c)
	})
	reg.Register(domain.ProviderExtendAI, func(c *config.ProviderConfig) (port.ParseAdapter, error) {
		return extendai.NewParser(c)
	})
	return reg
}

// LoadPricing reads the pricing table. A missing or invalid file is logged
// and yields a nil table so the rest of the service keeps working.
func LoadPricing(path string) pricing.Table {
	table, err := pricing.LoadTable(path)
	if err != nil {
		slog.Warn("app.LoadPricing: pricing unavailable", "path", path, "error", err)
		return nil
	}
	return table
}

// NewCompareService builds the fan-out service with page isolation under workDir.
func NewCompareService(cfg *config.Config, workDir string) service.CompareService {
	return service.NewCompareService(
		NewParserRegistry(cfg),
		pdf.NewExtractor(workDir),
		domain.FailurePolicy(cfg.Compare.FailurePolicy),
	)
}

// New builds every component selected by cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	uploads, err := service.NewUploadService(cfg.Compare.UploadDir, cfg.Compare.MaxFileSizeMB)
	if err != nil {
		return nil, fmt.Errorf("initializing uploads: %w", err)
	}
	a.Uploads = uploads
	a.Compare = NewCompareService(cfg, filepath.Join(cfg.Compare.UploadDir, "pages"))
	a.Pricing = LoadPricing(cfg.Pricing.Path)

	store, err := a.newStorage(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	deps := map[string]handler.Pinger{}
	repo, err := a.newRepository(ctx, cfg, deps)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Battles = service.NewBattleService(a.Compare, repo, store, a.Pricing, battle.NewPendingRegistry(), service.BattleConfig{
		DefaultProviders:   cfg.Battle.DefaultProviders,
		FeedbackWait:       cfg.Battle.FeedbackWait,
		PersistenceTimeout: cfg.Battle.PersistenceTimeout,
		ArtifactPrefix:     cfg.Storage.BattlePrefix,
	})

	a.Router = router.Setup(
		handler.NewParseHandler(a.Uploads, a.Compare, a.Battles, a.Pricing),
		handler.NewBattleHandler(a.Battles),
		handler.NewHealthHandler(deps),
		cfg.CORS.AllowedOrigins,
	)
	return a, nil
}

func (a *App) newStorage(ctx context.Context, cfg *config.Config) (port.ArtifactStorage, error) {
	switch cfg.Storage.Driver {
	case "", "local":
		s, err := localstorage.NewStorage(cfg.Storage.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("initializing local storage: %w", err)
		}
		return s, nil
	case "s3":
		s, err := s3storage.NewStorage(ctx, &cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("initializing S3 storage: %w", err)
		}
		return s, nil
	case "gcs":
		s, err := gcsstorage.NewStorage(ctx, &cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("initializing GCS storage: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func (a *App) newRepository(ctx context.Context, cfg *config.Config, deps map[string]handler.Pinger) (port.BattleRepository, error) {
	switch cfg.Repository.Driver {
	case "", "memory":
		return memory.NewBattleRepo(), nil
	case "postgres":
		db, err := postgres.NewDB(ctx, &cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		deps["postgres"] = db
		return postgres.NewBattleRepo(db), nil
	case "firestore":
		client, err := firestorerepo.NewClient(ctx, &cfg.Firestore)
		if err != nil {
			return nil, fmt.Errorf("connecting to firestore: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return firestorerepo.NewBattleRepo(client, &cfg.Firestore), nil
	default:
		return nil, fmt.Errorf("unknown repository driver %q", cfg.Repository.Driver)
	}
}

// Shutdown waits for in-flight battle persistence, bounded by timeout.
func (a *App) Shutdown(timeout time.Duration) error {
	if a.Battles == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.Battles.Shutdown(ctx)
}

// Close releases store clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
