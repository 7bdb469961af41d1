// Package filesystem writes encoded segments to an output directory.
package filesystem

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/sounding-etl/internal/domain"
	"github.com/couchcryptid/sounding-etl/internal/encoder"
)

// Writer stores one NetCDF file per segment in a directory.
// It implements pipeline.SegmentWriter.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates the output directory if needed and returns a Writer for it.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// WriteSegment encodes the records and writes them atomically: the file either
// appears complete under its final name or not at all.
func (w *Writer) WriteSegment(ctx context.Context, meta domain.SegmentMeta, records []domain.DerivedRecord) (domain.OutputFile, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutputFile{}, err
	}

	data, err := encoder.Marshal(meta, records)
	if err != nil {
		return domain.OutputFile{}, err
	}

	path := filepath.Join(w.dir, encoder.FileName(meta))
	if err := writeAtomic(path, data); err != nil {
		return domain.OutputFile{}, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}

	w.logger.Debug("segment file written",
		"path", path,
		"flight_id", meta.FlightID,
		"segment", meta.Index,
		"bytes", len(data),
	)

	return domain.OutputFile{
		Path:     path,
		FlightID: meta.FlightID,
		Segment:  meta.Index,
		Start:    meta.Start,
		End:      meta.End,
		Records:  len(records),
		Skipped:  meta.Skipped,
		Bytes:    int64(len(data)),
	}, nil
}

// writeAtomic writes data to a temp file next to path, syncs it and renames
// it into place.
func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
