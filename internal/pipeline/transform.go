package pipeline

import (
	"errors"
	"log/slog"

	"github.com/couchcryptid/sounding-etl/internal/domain"
	"github.com/couchcryptid/sounding-etl/internal/observability"
)

// transformSegment builds the derived records of a segment, logging and
// counting every observation it has to skip.
func transformSegment(seg domain.Segment, logger *slog.Logger, metrics *observability.Metrics) domain.SegmentRecords {
	recs := domain.BuildSegmentRecords(seg)
	for _, s := range recs.Skipped {
		reason := skipReason(s.Err)
		metrics.RecordsSkipped.WithLabelValues(reason).Inc()
		logger.Warn("observation skipped",
			"observation_id", s.ObservationID,
			"timestamp", s.Timestamp,
			"reason", reason,
			"error", s.Err,
		)
	}
	return recs
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingField):
		return "missing_field"
	case errors.Is(err, domain.ErrInvalidMeasurement):
		return "invalid_measurement"
	default:
		return "other"
	}
}
