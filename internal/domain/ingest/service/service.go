// Package service orchestrates one ingestion run: format detection,
// extraction, normalization, window resolution, aggregation, membership
// counting, and persistence. Runs are synchronous; a failure at any stage
// aborts the run with nothing persisted.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/aggregate"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/extractor"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/normalizer"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/repository"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/sniffer"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/week"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/membership"
	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/pkg/metrics"
)

// FileError marks a structural failure in a specific uploaded file so the
// operator can tell "bad file" from "pipeline bug".
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %q: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Input is one ingestion request: a revenue export plus an optional
// membership roster.
type Input struct {
	RevenueName string
	RevenueData []byte
	RosterName  string
	RosterData  []byte
}

// Result summarizes a completed run.
type Result struct {
	Metrics     *aggregate.WeeklyMetrics
	Week        week.Window
	Month       week.Window
	Format      sniffer.Format
	RowStats    normalizer.Stats
	RosterStats membership.RosterStats
	NewMembers  membership.NewMemberCounts
}

// IngestService runs the pipeline end to end.
type IngestService struct {
	logger      *slog.Logger
	normalizer  *normalizer.Normalizer
	aggregator  *aggregate.Aggregator
	registry    *membership.Registry
	repo        repository.MetricsRepository
	collectors  *metrics.Collectors
	tracer      trace.Tracer
	extractOpts extractor.Options
}

// Option configures an IngestService.
type Option func(*IngestService)

// WithExtractOptions sets source-schema tuning for extraction.
func WithExtractOptions(opts extractor.Options) Option {
	return func(s *IngestService) { s.extractOpts = opts }
}

// WithAggregator overrides the default aggregator.
func WithAggregator(a *aggregate.Aggregator) Option {
	return func(s *IngestService) { s.aggregator = a }
}

// WithCollectors attaches Prometheus collectors.
func WithCollectors(c *metrics.Collectors) Option {
	return func(s *IngestService) { s.collectors = c }
}

// NewIngestService creates the pipeline service. registry may be nil when
// membership tracking is disabled.
func NewIngestService(logger *slog.Logger, repo repository.MetricsRepository, registry *membership.Registry, opts ...Option) *IngestService {
	s := &IngestService{
		logger:     logger,
		normalizer: normalizer.New(logger),
		aggregator: aggregate.New(),
		registry:   registry,
		repo:       repo,
		tracer:     otel.Tracer("ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest processes one upload start to finish and persists the resulting
// weekly metrics record. No partial week is ever committed.
func (s *IngestService) Ingest(ctx context.Context, in Input) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.run",
		trace.WithAttributes(attribute.String("file", in.RevenueName)))
	defer span.End()

	started := time.Now()
	result, err := s.run(ctx, in)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	if s.collectors != nil {
		s.collectors.RunsTotal.WithLabelValues(status).Inc()
		s.collectors.RunDuration.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("ingestion run complete",
		slog.String("file", in.RevenueName),
		slog.String("format", string(result.Format)),
		slog.String("week", result.Week.String()),
		slog.Int("rows_kept", result.RowStats.Kept),
		slog.Int("rows_dropped", result.RowStats.Dropped),
		slog.Int("new_members", result.NewMembers.Total()),
	)
	return result, nil
}

func (s *IngestService) run(ctx context.Context, in Input) (*Result, error) {
	format, err := sniffer.Detect(in.RevenueData, ext(in.RevenueName))
	if err != nil {
		return nil, &FileError{File: in.RevenueName, Err: err}
	}

	rs, err := extractor.Extract(in.RevenueData, format, s.extractOpts)
	if err != nil {
		return nil, &FileError{File: in.RevenueName, Err: err}
	}

	records, stats := s.normalizer.Normalize(rs)
	if s.collectors != nil {
		s.collectors.RowsParsedTotal.Add(float64(stats.Kept))
		s.collectors.RowsDroppedTotal.Add(float64(stats.Dropped + rs.Dropped))
	}
	if len(records) == 0 {
		return nil, &FileError{File: in.RevenueName, Err: extractor.ErrNoRows}
	}

	dates := make([]time.Time, len(records))
	for i, rec := range records {
		dates[i] = rec.Date
	}

	weekWin, err := week.Resolve(dates)
	if err != nil {
		return nil, fmt.Errorf("resolve week window: %w", err)
	}
	monthWin, err := week.MonthOf(dates)
	if err != nil {
		return nil, fmt.Errorf("resolve month window: %w", err)
	}

	m, err := s.aggregator.Aggregate(records, weekWin, monthWin)
	if err != nil {
		var zero *aggregate.ZeroRevenueError
		if errors.As(err, &zero) {
			return nil, &FileError{File: in.RevenueName, Err: err}
		}
		return nil, err
	}

	result := &Result{
		Metrics:  m,
		Week:     weekWin,
		Month:    monthWin,
		Format:   format,
		RowStats: stats,
	}

	if len(in.RosterData) > 0 && s.registry != nil {
		entries, rosterStats, err := membership.ParseRoster(in.RosterData, ext(in.RosterName))
		if err != nil {
			return nil, &FileError{File: in.RosterName, Err: err}
		}
		// Upsert inside the registry transaction: if the metrics write
		// fails, the member keys stay unregistered and a retry of the same
		// upload counts them again.
		counts, err := s.registry.CountNewMembers(ctx, entries, weekWin, func(c membership.NewMemberCounts) error {
			m.NewIndividualMembersWeekly = c.Individual
			m.NewFamilyMembersWeekly = c.Family
			m.NewConciergeMembersWeekly = c.Concierge
			m.NewCorporateMembersWeekly = c.Corporate
			return s.repo.UpsertWeek(ctx, m)
		})
		if err != nil {
			return nil, err
		}
		result.RosterStats = rosterStats
		result.NewMembers = counts
	} else if err := s.repo.UpsertWeek(ctx, m); err != nil {
		return nil, err
	}

	// The record is committed; a stale rollup view corrects itself on the
	// next refresh, so this is not worth failing the run over.
	if err := s.repo.RefreshMonthlyRollup(ctx); err != nil {
		s.logger.Warn("monthly rollup refresh failed", slog.Any("error", err))
	}

	return result, nil
}

func ext(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i:]
		}
		if name[i] == '/' || name[i] == '\\' {
			break
		}
	}
	return ""
}
