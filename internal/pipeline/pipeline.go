package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/sounding-etl/internal/domain"
	"github.com/couchcryptid/sounding-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Fetcher returns the raw observations of a time window.
type Fetcher interface {
	Fetch(ctx context.Context, start, end time.Time) ([]domain.Observation, error)
}

// SegmentWriter encodes one segment's records and stores the result.
type SegmentWriter interface {
	WriteSegment(ctx context.Context, meta domain.SegmentMeta, records []domain.DerivedRecord) (domain.OutputFile, error)
}

// Notifier announces a written file. Failures are logged, never fatal.
type Notifier interface {
	Notify(ctx context.Context, runID string, file domain.OutputFile) error
}

// Pipeline orchestrates one fetch-segment-convert-write run.
type Pipeline struct {
	fetcher  Fetcher
	writer   SegmentWriter
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	newRunID func() string
	ready    atomic.Bool
	progress progress

	window     time.Duration
	maxSegment time.Duration
	workers    int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for the default window and durations.
func WithClock(c clockwork.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithNotifier publishes a notification for every written file.
func WithNotifier(n Notifier) Option { return func(p *Pipeline) { p.notifier = n } }

// WithWorkers bounds how many segments are converted concurrently.
func WithWorkers(n int) Option { return func(p *Pipeline) { p.workers = n } }

// WithMaxSegmentDuration sets the longest time span one output file may cover.
func WithMaxSegmentDuration(d time.Duration) Option { return func(p *Pipeline) { p.maxSegment = d } }

// WithDefaultWindow sets the trailing window used when Run is given a zero window.
func WithDefaultWindow(d time.Duration) Option { return func(p *Pipeline) { p.window = d } }

// New creates a Pipeline with the given stages and observability.
func New(f Fetcher, w SegmentWriter, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:    f,
		writer:     w,
		logger:     logger,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
		newRunID:   uuid.NewString,
		window:     domain.DefaultWindow,
		maxSegment: domain.DefaultMaxSegmentDuration,
		workers:    1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// CheckReadiness returns nil once a run has fetched its observations.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("observations have not been fetched yet")
	}
	return nil
}

// Progress reports how far the current run has got.
func (p *Pipeline) Progress() Progress {
	return p.progress.snapshot()
}

// Run converts the observations of window into files. A zero window means the
// trailing default window ending now.
//
// Run returns domain.ErrNoData when there is nothing to convert and
// domain.ErrSegmentsFailed when some segments produced no file; the Summary is
// populated in both cases.
func (p *Pipeline) Run(ctx context.Context, window domain.Window) (Summary, error) {
	started := p.clock.Now()
	if window == (domain.Window{}) {
		window = domain.TrailingWindow(p.clock, p.window)
	}

	sum := Summary{RunID: p.newRunID(), Window: window}
	if !window.Valid() {
		return sum, fmt.Errorf("invalid window %s to %s", window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	}

	logger := p.logger.With("run_id", sum.RunID)
	logger.Info("run started",
		"start", window.Start.Format(time.RFC3339),
		"end", window.End.Format(time.RFC3339),
		"max_segment", p.maxSegment,
		"workers", p.workers,
	)
	p.metrics.LastRunStart.Set(float64(started.Unix()))
	defer func() {
		p.progress.setPhase(PhaseDone)
		p.metrics.RunDuration.Observe(p.clock.Since(started).Seconds())
	}()

	p.progress.setPhase(PhaseFetching)
	obs, err := p.fetcher.Fetch(ctx, window.Start, window.End)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyResult) {
			logger.Warn("no observations in window", "error", err)
			return sum, fmt.Errorf("%w: %w", domain.ErrNoData, err)
		}
		return sum, fmt.Errorf("fetch observations: %w", err)
	}
	p.ready.Store(true)
	sum.Fetched = len(obs)

	obs, sum.Unassigned = assignable(obs)
	if sum.Unassigned > 0 {
		logger.Warn("dropped observations without flight id or timestamp", "count", sum.Unassigned)
		p.metrics.ObservationsDropped.WithLabelValues("unassigned").Add(float64(sum.Unassigned))
	}
	if len(obs) == 0 {
		return sum, fmt.Errorf("%w: all %d fetched observations unassigned", domain.ErrNoData, sum.Fetched)
	}

	segments := domain.SegmentObservations(obs, p.maxSegment)
	p.metrics.Segments.Add(float64(len(segments)))
	sum.Segments = len(segments)
	p.progress.segments.Store(int64(len(segments)))
	p.progress.setPhase(PhaseConverting)

	sum.Results = p.convertAll(ctx, logger, sum.RunID, segments)
	sum.tally()
	p.logSummary(logger, sum)

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	if sum.Failed > 0 {
		return sum, fmt.Errorf("%w: %d of %d", domain.ErrSegmentsFailed, sum.Failed, sum.Segments)
	}
	return sum, nil
}

// convertAll processes segments with at most p.workers in flight. A failed
// segment never stops its siblings. Results are stored by segment position.
func (p *Pipeline) convertAll(ctx context.Context, logger *slog.Logger, runID string, segments []domain.Segment) []SegmentResult {
	results := make([]SegmentResult, len(segments))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, seg := range segments {
		g.Go(func() error {
			results[i] = p.convertSegment(ctx, logger, runID, seg)
			if results[i].Err != nil {
				p.progress.failed.Add(1)
			}
			p.progress.done.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Pipeline) convertSegment(ctx context.Context, logger *slog.Logger, runID string, seg domain.Segment) SegmentResult {
	res := SegmentResult{FlightID: seg.FlightID, Index: seg.Index, Observations: len(seg.Observations)}
	logger = logger.With("flight_id", seg.FlightID, "segment", seg.Index)

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	recs := transformSegment(seg, logger, p.metrics)
	res.Records = len(recs.Records)
	res.Skipped = len(recs.Skipped)

	if len(recs.Records) == 0 {
		res.Err = fmt.Errorf("%w: all %d observations skipped", domain.ErrEncoding, len(recs.Skipped))
		p.segmentFailed(logger, res.Err)
		return res
	}

	file, err := p.writer.WriteSegment(ctx, recs.Meta(seg), recs.Records)
	if err != nil {
		res.Err = err
		p.segmentFailed(logger, err)
		return res
	}
	res.File = &file
	p.metrics.FilesWritten.Inc()
	p.metrics.BytesWritten.Add(float64(file.Bytes))
	logger.Info("segment written", "path", file.Path, "records", file.Records, "skipped", file.Skipped)

	p.notify(ctx, logger, runID, file)
	return res
}

func (p *Pipeline) segmentFailed(logger *slog.Logger, err error) {
	p.metrics.SegmentFailures.Inc()
	logger.Error("segment failed", "error", err)
}

func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, runID string, file domain.OutputFile) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, runID, file); err != nil {
		p.metrics.Notifications.WithLabelValues("error").Inc()
		logger.Warn("file notification failed", "path", file.Path, "error", err)
		return
	}
	p.metrics.Notifications.WithLabelValues("success").Inc()
}

func (p *Pipeline) logSummary(logger *slog.Logger, sum Summary) {
	attrs := []any{
		"fetched", sum.Fetched,
		"unassigned", sum.Unassigned,
		"segments", sum.Segments,
		"files_written", sum.FilesWritten,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
	}
	if sum.Failed > 0 {
		logger.Warn("run finished with failed segments", attrs...)
		return
	}
	logger.Info("run finished", attrs...)
}

// assignable drops observations that cannot be placed in a flight segment and
// returns how many were dropped.
func assignable(obs []domain.Observation) ([]domain.Observation, int) {
	kept := make([]domain.Observation, 0, len(obs))
	for _, o := range obs {
		if o.FlightID == "" || o.Timestamp.IsZero() {
			continue
		}
		kept = append(kept, o)
	}
	return kept, len(obs) - len(kept)
}
