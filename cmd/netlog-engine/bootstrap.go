package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/miradorstack/mirador-netlog/internal/bus"
	"github.com/miradorstack/mirador-netlog/internal/cache"
	"github.com/miradorstack/mirador-netlog/internal/classifier"
	"github.com/miradorstack/mirador-netlog/internal/config"
	"github.com/miradorstack/mirador-netlog/internal/detectors"
	"github.com/miradorstack/mirador-netlog/internal/engine"
	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/repo"
	"github.com/miradorstack/mirador-netlog/internal/services"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

// runtime holds the wired service and the resources to release on exit.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *services.NetlogService
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func (a *app) bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := utils.NewLoggerTo(a.errOut, cfg.Logging.Level, cfg.Logging.JSON)
	rt := &runtime{cfg: cfg, logger: logger}

	delimiter, err := repo.ParseDelimiter(cfg.Dataset.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("dataset delimiter: %w", err)
	}
	ds, err := repo.Load(ctx, repo.Source{
		Kind:      cfg.Dataset.Source,
		Path:      cfg.Dataset.Path,
		Delimiter: delimiter,
		DSN:       cfg.Dataset.DSN,
		Table:     cfg.Dataset.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("load reference dataset: %w", err)
	}
	logger.Info("reference dataset loaded",
		slog.String("source", ds.Source()),
		slog.Int("rows", ds.Len()),
		slog.Int("normal", ds.Partition(models.LabelNormal).Len()),
		slog.Int("abnormal", ds.Partition(models.LabelAbnormal).Len()),
	)

	rules, err := detectors.LoadThresholdRules(cfg.Rules.Path)
	if err != nil {
		return nil, fmt.Errorf("load rule pack: %w", err)
	}
	merge, err := engine.ParseMergePolicy(cfg.Explain.Merge)
	if err != nil {
		return nil, err
	}
	explainer := engine.NewExplainer(ds,
		engine.WithThresholdRules(rules),
		engine.WithMergePolicy(merge),
		engine.WithZThreshold(cfg.Explain.ZThreshold),
	)
	if err := explainer.Ready(); err != nil {
		logger.Warn("explanations unavailable until the reference dataset has both labels", slog.Any("error", err))
	}

	model, err := classifier.New(classifier.Options{
		Kind:     cfg.Classifier.Kind,
		Label:    cfg.Classifier.Label,
		Seed:     cfg.Classifier.Seed,
		Endpoint: cfg.Classifier.Endpoint,
		Timeout:  cfg.Classifier.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	pipeline := engine.NewPipeline(logger, model, explainer)

	opts := services.Options{CacheTTL: cfg.Cache.TTL}
	if cfg.Cache.Enabled {
		provider := cache.NewMemoryProvider()
		opts.Cache = provider
		rt.closers = append(rt.closers, func() { _ = provider.Close() })
	}
	if cfg.Alerts.Enabled {
		publisher, err := bus.NewPublisher(cfg.Alerts.NATSURL, cfg.Alerts.Subject)
		if err != nil {
			logger.Warn("abnormal row alerts disabled", slog.Any("error", err))
		} else {
			opts.Alerts = publisher
			rt.closers = append(rt.closers, publisher.Close)
		}
	}

	rt.service = services.NewNetlogService(logger, ds, pipeline, explainer, opts)
	return rt, nil
}
