package domain

import (
	"slices"
	"time"
)

// DefaultMaxSegmentDuration bounds the time span of one output file.
const DefaultMaxSegmentDuration = 3 * time.Hour

// SegmentObservations groups observations by flight and splits each flight
// into segments spanning at most maxDuration from their first observation.
//
// Flights appear in first-seen order and segments within a flight in time
// order. Observations sharing a timestamp always land in the same segment.
// A non-positive maxDuration selects DefaultMaxSegmentDuration.
func SegmentObservations(observations []Observation, maxDuration time.Duration) []Segment {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxSegmentDuration
	}

	var segments []Segment
	for _, flight := range groupByFlight(observations) {
		segments = append(segments, splitFlight(flight, maxDuration)...)
	}
	return segments
}

// groupByFlight returns each flight's observations in first-seen flight order,
// sorted by timestamp. The sort is stable so equal timestamps keep input order.
func groupByFlight(observations []Observation) [][]Observation {
	index := make(map[string]int)
	var flights [][]Observation
	for _, obs := range observations {
		i, ok := index[obs.FlightID]
		if !ok {
			i = len(flights)
			index[obs.FlightID] = i
			flights = append(flights, nil)
		}
		flights[i] = append(flights[i], obs)
	}

	for _, flight := range flights {
		slices.SortStableFunc(flight, func(a, b Observation) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
	}
	return flights
}

// splitFlight cuts one flight's sorted observations into segments.
func splitFlight(flight []Observation, maxDuration time.Duration) []Segment {
	if len(flight) == 0 {
		return nil
	}

	var segments []Segment
	start := 0
	for i := 1; i < len(flight); i++ {
		if flight[i].Timestamp.Sub(flight[start].Timestamp) > maxDuration {
			segments = append(segments, newSegment(flight[start:i], len(segments)))
			start = i
		}
	}
	return append(segments, newSegment(flight[start:], len(segments)))
}

func newSegment(observations []Observation, index int) Segment {
	return Segment{
		FlightID:     observations[0].FlightID,
		Index:        index,
		Observations: slices.Clip(observations),
	}
}
