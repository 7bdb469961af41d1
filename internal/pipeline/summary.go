package pipeline

import (
	"sync/atomic"

	"github.com/couchcryptid/sounding-etl/internal/domain"
)

// SegmentResult is the outcome of converting one segment.
type SegmentResult struct {
	FlightID     string
	Index        int
	Observations int
	Records      int
	Skipped      int
	File         *domain.OutputFile // nil when the segment failed
	Err          error
}

// Summary reports what a run did. Results follow segment order: flights in
// first-seen order, segments by start time.
type Summary struct {
	RunID  string
	Window domain.Window

	Fetched      int
	Unassigned   int
	Segments     int
	FilesWritten int
	Failed       int
	Skipped      int

	Results []SegmentResult
}

// Files returns the files written by the run.
func (s Summary) Files() []domain.OutputFile {
	files := make([]domain.OutputFile, 0, s.FilesWritten)
	for _, r := range s.Results {
		if r.File != nil {
			files = append(files, *r.File)
		}
	}
	return files
}

func (s *Summary) tally() {
	s.FilesWritten, s.Failed, s.Skipped = 0, 0, 0
	for _, r := range s.Results {
		s.Skipped += r.Skipped
		if r.Err != nil {
			s.Failed++
		} else if r.File != nil {
			s.FilesWritten++
		}
	}
}

// Phases reported by Progress.
const (
	PhasePending    = "pending"
	PhaseFetching   = "fetching"
	PhaseConverting = "converting"
	PhaseDone       = "done"
)

// Progress is a point-in-time view of a run, safe to read while it executes.
type Progress struct {
	Phase    string `json:"phase"`
	Segments int    `json:"segments"`
	Done     int    `json:"done"`
	Failed   int    `json:"failed"`
}

// progress tracks a running Pipeline for concurrent readers.
type progress struct {
	phase    atomic.Value // string
	segments atomic.Int64
	done     atomic.Int64
	failed   atomic.Int64
}

func (p *progress) setPhase(phase string) { p.phase.Store(phase) }

func (p *progress) snapshot() Progress {
	phase, _ := p.phase.Load().(string)
	if phase == "" {
		phase = PhasePending
	}
	return Progress{
		Phase:    phase,
		Segments: int(p.segments.Load()),
		Done:     int(p.done.Load()),
		Failed:   int(p.failed.Load()),
	}
}
