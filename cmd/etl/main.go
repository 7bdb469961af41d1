// Command etl converts WindBorne sounding balloon observations for one time
// window into UASDC NetCDF files.
//
// Usage:
//
//	etl [-bucket-hours H] [-out DIR] [start [end]]
//
// Times are UTC in YYYY-mm-dd_HH:MM form. With only a start the window ends
// now; with neither the trailing WINDOW (default 3h) is converted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/sounding-etl/internal/adapter/filesystem"
	"github.com/couchcryptid/sounding-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/sounding-etl/internal/adapter/kafka"
	"github.com/couchcryptid/sounding-etl/internal/adapter/windborne"
	"github.com/couchcryptid/sounding-etl/internal/config"
	"github.com/couchcryptid/sounding-etl/internal/domain"
	"github.com/couchcryptid/sounding-etl/internal/observability"
	"github.com/couchcryptid/sounding-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// Exit codes.
const (
	exitOK             = 0
	exitFatal          = 1
	exitSegmentsFailed = 2
)

const timeLayout = "2006-01-02_15:04"

func main() {
	bucketHours := flag.Float64("bucket-hours", 0, "longest time span one output file may cover, in hours (overrides SEGMENT_MAX_DURATION)")
	outDir := flag.String("out", "", "output directory (overrides OUTPUT_DIR)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [start [end]]\n\nTimes are UTC, formatted %s.\n\n", os.Args[0], timeLayout)
		flag.PrintDefaults()
	}
	flag.Parse()

	window, err := parseWindow(flag.Args(), time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		flag.Usage()
		os.Exit(exitFatal)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(exitFatal)
	}
	if err := applyFlags(cfg, *bucketHours, *outDir); err != nil {
		slog.Error("invalid flags", "error", err)
		os.Exit(exitFatal)
	}

	os.Exit(run(cfg, window))
}

func run(cfg *config.Config, window domain.Window) int {
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	defer func() {
		if err := observability.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("write metrics textfile failed", "path", cfg.MetricsTextfile, "error", err)
		}
	}()

	writer, err := filesystem.NewWriter(cfg.OutputDir, logger)
	if err != nil {
		logger.Error("output directory unusable", "dir", cfg.OutputDir, "error", err)
		return exitFatal
	}

	opts := []pipeline.Option{
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithMaxSegmentDuration(cfg.SegmentMaxDuration),
		pipeline.WithDefaultWindow(cfg.Window),
	}
	if cfg.NotifyEnabled() {
		notifier := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := notifier.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		opts = append(opts, pipeline.WithNotifier(notifier))
		logger.Info("file notifications enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	client := windborne.NewClient(cfg, logger, metrics)
	p := pipeline.New(client, writer, logger, metrics, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	sum, err := p.Run(ctx, window)
	printSummary(os.Stderr, sum)
	return exitCode(logger, err)
}

// parseWindow interprets the positional start and end arguments.
func parseWindow(args []string, now time.Time) (domain.Window, error) {
	switch len(args) {
	case 0:
		return domain.Window{}, nil
	case 1, 2:
	default:
		return domain.Window{}, fmt.Errorf("expected at most two times, got %d", len(args))
	}

	start, err := time.Parse(timeLayout, args[0])
	if err != nil {
		return domain.Window{}, fmt.Errorf("start time %q: want %s", args[0], timeLayout)
	}
	end := now.UTC().Truncate(time.Second)
	if len(args) == 2 {
		if end, err = time.Parse(timeLayout, args[1]); err != nil {
			return domain.Window{}, fmt.Errorf("end time %q: want %s", args[1], timeLayout)
		}
	}

	w := domain.Window{Start: start, End: end}
	if !w.Valid() {
		return domain.Window{}, fmt.Errorf("end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return w, nil
}

// applyFlags overrides config values with command-line flags that were set.
func applyFlags(cfg *config.Config, bucketHours float64, outDir string) error {
	if bucketHours != 0 {
		if bucketHours < 0 || math.IsNaN(bucketHours) || math.IsInf(bucketHours, 0) {
			return fmt.Errorf("bucket-hours must be positive, got %v", bucketHours)
		}
		cfg.SegmentMaxDuration = time.Duration(bucketHours * float64(time.Hour))
	}
	if outDir != "" {
		cfg.OutputDir = outDir
	}
	return cfg.Validate()
}

func exitCode(logger *slog.Logger, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, domain.ErrSegmentsFailed):
		logger.Warn("some segments failed", "error", err)
		return exitSegmentsFailed
	default:
		logger.Error("run failed", "error", err)
		return exitFatal
	}
}

// printSummary writes the human-readable run report. Logs own stdout.
func printSummary(w io.Writer, sum pipeline.Summary) {
	for _, r := range sum.Results {
		if r.File != nil {
			fmt.Fprintf(w, "wrote %s (%d records, %d skipped)\n", r.File.Path, r.File.Records, r.File.Skipped)
			continue
		}
		fmt.Fprintf(w, "FAILED %s segment %d: %v\n", r.FlightID, r.Index, r.Err)
	}
	fmt.Fprintf(w, "%d file(s) written, %d segment(s) failed, %d observation(s) skipped, %d unassigned\n",
		sum.FilesWritten, sum.Failed, sum.Skipped, sum.Unassigned)
}
