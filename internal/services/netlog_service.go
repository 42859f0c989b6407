package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/miradorstack/mirador-netlog/internal/cache"
	"github.com/miradorstack/mirador-netlog/internal/engine"
	"github.com/miradorstack/mirador-netlog/internal/metrics"
	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/repo"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

// AlertPublisher receives abnormal rows found during an analysis.
type AlertPublisher interface {
	PublishAbnormal(evt models.AbnormalRowEvent) error
}

// Options wires the optional collaborators of NetlogService.
type Options struct {
	Cache    cache.Provider
	CacheTTL time.Duration
	Alerts   AlertPublisher
}

// NetlogService is the facade shared by the HTTP and gRPC transports.
type NetlogService struct {
	logger     *slog.Logger
	dataset    *repo.Dataset
	aggregator *engine.Aggregator
	explainer  *engine.Explainer
	pipeline   *engine.Pipeline
	cache      cache.Provider
	cacheTTL   time.Duration
	alerts     AlertPublisher
	latencies  *utils.LatencyTracker
	analyses   atomic.Int64
}

// latencyLogEvery is the number of analyses between p95 latency log lines.
const latencyLogEvery = 20

// NewNetlogService constructs the service facade.
func NewNetlogService(logger *slog.Logger, ds *repo.Dataset, pipeline *engine.Pipeline, explainer *engine.Explainer, opts Options) *NetlogService {
	if logger == nil {
		logger = slog.Default()
	}
	provider := opts.Cache
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &NetlogService{
		logger:     logger,
		dataset:    ds,
		aggregator: engine.NewAggregator(ds),
		explainer:  explainer,
		pipeline:   pipeline,
		cache:      provider,
		cacheTTL:   opts.CacheTTL,
		alerts:     opts.Alerts,
		latencies:  utils.NewLatencyTracker(1024),
	}
}

// DashboardStats returns the dashboard blocks, served from cache while the reference
// dataset is unchanged.
func (s *NetlogService) DashboardStats(ctx context.Context) (models.DashboardStats, error) {
	key := s.dashboardKey()
	if data, err := s.cache.Get(ctx, key); err == nil {
		var stats models.DashboardStats
		if err := json.Unmarshal(data, &stats); err == nil {
			metrics.ObserveDashboard(metrics.OutcomeCached)
			return stats, nil
		}
		s.logger.Warn("discarding unreadable cached dashboard", slog.String("key", key))
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("dashboard cache lookup failed", slog.Any("error", err))
	}

	stats, err := s.aggregator.Compute()
	if err != nil {
		metrics.ObserveDashboard(metrics.OutcomeError)
		return models.DashboardStats{}, err
	}
	metrics.ObserveDashboard(metrics.OutcomeSuccess)

	if data, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache store failed", slog.Any("error", err))
		}
	}
	return stats, nil
}

// TrafficScatter returns the source/destination byte scatter, capped at limit points.
func (s *NetlogService) TrafficScatter(_ context.Context, limit int) (models.TrafficScatter, error) {
	return s.aggregator.TrafficScatter(limit)
}

// AnalyzeLog parses an uploaded log table, classifies every row and explains the abnormal
// ones. Unreadable input fails the whole request.
func (s *NetlogService) AnalyzeLog(ctx context.Context, r io.Reader, delimiter rune) (models.AnalysisReport, error) {
	if s.pipeline == nil {
		return models.AnalysisReport{}, fmt.Errorf("analysis pipeline not configured")
	}

	start := time.Now()
	table, err := repo.ReadTable(r,
		repo.WithDelimiter(delimiter),
		repo.WithRequiredColumns(models.InputColumns()...),
		repo.WithReservedColumns(models.ResultColumns()...),
	)
	if err != nil {
		metrics.ObserveAnalysis(time.Since(start), metrics.OutcomeError)
		return models.AnalysisReport{}, err
	}

	report, err := s.pipeline.Analyze(ctx, table)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveAnalysis(duration, metrics.OutcomeError)
		s.logger.Error("log analysis failed", slog.Any("error", err))
		return models.AnalysisReport{}, err
	}
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	metrics.ObserveRows(map[string]int{
		string(models.LabelAbnormal): report.AbnormalRows,
		string(models.LabelNormal):   report.TotalRows - report.AbnormalRows - report.SkippedRows,
	}, report.SkippedRows)

	s.recordLatency(duration)
	s.publishAbnormal(report)
	return report, nil
}

// Explain returns the explanation for a single record, or ok=false for normal records.
func (s *NetlogService) Explain(_ context.Context, rec models.LogRecord, label models.Label) (models.Explanation, bool, error) {
	if s.explainer == nil {
		return nil, false, fmt.Errorf("explainer not configured")
	}
	return s.explainer.ExplainIfAbnormal(rec, label)
}

// DatasetInfo describes the loaded reference dataset.
func (s *NetlogService) DatasetInfo() (source string, rows int) {
	if s.dataset == nil {
		return "", 0
	}
	return s.dataset.Source(), s.dataset.Len()
}

// LatencyP95 returns the current p95 analysis latency.
func (s *NetlogService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func (s *NetlogService) recordLatency(d time.Duration) {
	s.latencies.Observe(d)
	if n := s.analyses.Add(1); n%latencyLogEvery == 0 {
		s.logger.Info("analysis latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", s.latencies.Count()),
			slog.Int64("analyses", n),
		)
	}
}

func (s *NetlogService) dashboardKey() string {
	fingerprint := "none"
	if s.dataset != nil {
		fingerprint = s.dataset.Fingerprint()
	}
	return "netlog:dashboard:" + fingerprint
}

func (s *NetlogService) publishAbnormal(report models.AnalysisReport) {
	if s.alerts == nil || report.AbnormalRows == 0 {
		return
	}
	now := time.Now().UTC()
	for _, row := range report.Results {
		if row.Err != nil || row.Prediction != models.LabelAbnormal {
			continue
		}
		evt := models.AbnormalRowEvent{
			AnalysisID:  report.AnalysisID,
			Row:         row.Row,
			Record:      row.Record,
			Explanation: row.Explanation,
			DetectedAt:  now,
		}
		if err := s.alerts.PublishAbnormal(evt); err != nil {
			s.logger.Warn("abnormal row alert failed", slog.String("analysis_id", report.AnalysisID), slog.Any("error", err))
			return
		}
	}
}
