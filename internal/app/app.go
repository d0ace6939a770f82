package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"Costbook/internal/config"
	"Costbook/internal/extract"
	"Costbook/internal/infrastructure/embedding"
	"Costbook/internal/infrastructure/extractor"
	"Costbook/internal/infrastructure/llm"
	"Costbook/internal/infrastructure/storage"
	"Costbook/internal/infrastructure/vecindex"
	"Costbook/internal/pricing"
	"Costbook/internal/recipe"
	"Costbook/internal/resolver"
	"Costbook/internal/usecase"
)

// App owns the wired pipeline and the shared database pool.
type App struct {
	Ingestion  *usecase.Ingestion
	VectorSync *usecase.VectorSync
	Repricer   *usecase.Repricer

	db     *sql.DB
	logger *slog.Logger
}

// New connects to the database, prepares the schema and wires every
// component. The embedding dimension is pinned to the catalog: a config
// pointing a differently sized model at an existing catalog is a startup
// error, not a runtime surprise.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	strategy, err := pricing.ParseStrategy(cfg.Pricing.Strategy)
	if err != nil {
		return nil, fmt.Errorf("pricing config: %w", err)
	}
	if cfg.Embedding.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Embedding.Dimension)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	catalog := storage.NewPostgresCatalog(db)
	if err := catalog.EnsureSchema(ctx, cfg.Embedding.Dimension); err != nil {
		_ = db.Close()
		return nil, err
	}
	storedDim, err := catalog.VectorDimension(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if storedDim > 0 && storedDim != cfg.Embedding.Dimension {
		_ = db.Close()
		return nil, fmt.Errorf("catalog vectors have dimension %d, config says %d; rebuild the index or fix the config", storedDim, cfg.Embedding.Dimension)
	}

	tracker := storage.NewPostgresTracker(db)
	index := vecindex.NewPgVectorIndex(db, cfg.Embedding.Dimension)
	embedder := embedding.NewClient(cfg.Embedding)
	judge := llm.NewJudge(cfg.Judge)

	matcher := resolver.New(embedder, index, catalog, judge,
		cfg.Resolver.MergeThreshold, cfg.Resolver.JudgeThreshold, logger)

	registry := extract.NewRegistry()
	registry.Register(extractor.NewHTMLTableExtractor())
	registry.Register(extractor.NewCSVExtractor())

	source := extractor.NewFileSource(registry, cfg.Sources, layoutFromConfig(cfg.Parser.Layout), logger)
	assembler := recipe.NewAssembler(cfg.Parser.LaborKeywords, logger)
	engine := pricing.NewEngine(strategy)

	return &App{
		Ingestion:  usecase.NewIngestion(source, tracker, assembler, matcher, catalog, index, engine, logger),
		VectorSync: usecase.NewVectorSync(catalog, embedder, index, cfg.Embedding.BatchSize, logger),
		Repricer:   usecase.NewRepricer(catalog, engine, logger),
		db:         db,
		logger:     logger,
	}, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	return a.db.Close()
}

func layoutFromConfig(c config.LayoutConfig) extract.Layout {
	if c == (config.LayoutConfig{}) {
		return extract.DefaultLayout()
	}
	return extract.Layout{
		Code:           c.Code,
		Description:    c.Description,
		Unit:           c.Unit,
		ComponentQty:   c.ComponentQty,
		ArticleQty:     c.ArticleQty,
		ManpowerQty:    c.ManpowerQty,
		ComponentPrice: c.ComponentPrice,
		ArticlePrice:   c.ArticlePrice,
		ManpowerPrice:  c.ManpowerPrice,
		Total:          c.Total,
	}
}
