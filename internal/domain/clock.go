package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultWindow is the trailing period converted when no explicit window is given.
const DefaultWindow = 3 * time.Hour

// Window is a closed time range [Start, End] of observations to convert.
type Window struct {
	Start time.Time
	End   time.Time
}

// TrailingWindow returns the window of length d ending at the clock's current
// time, truncated to whole seconds as the data API expects.
func TrailingWindow(clock clockwork.Clock, d time.Duration) Window {
	if d <= 0 {
		d = DefaultWindow
	}
	end := clock.Now().UTC().Truncate(time.Second)
	return Window{Start: end.Add(-d), End: end}
}

// Valid reports whether the window is non-empty.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && w.End.After(w.Start)
}
