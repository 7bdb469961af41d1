package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

func obsAt(id, flight string, offset time.Duration) Observation {
	return Observation{ID: id, FlightID: flight, Timestamp: baseTime.Add(offset)}
}

func segmentIDs(seg Segment) []string {
	ids := make([]string, len(seg.Observations))
	for i, obs := range seg.Observations {
		ids[i] = obs.ID
	}
	return ids
}

func TestSegmentObservations_BoundaryScenario(t *testing.T) {
	obs := []Observation{
		obsAt("a1", "A", 0),
		obsAt("a2", "A", 90*time.Minute),
		obsAt("a3", "A", 3*time.Hour+time.Minute),
	}

	segments := SegmentObservations(obs, 3*time.Hour)

	require.Len(t, segments, 2)
	assert.Equal(t, []string{"a1", "a2"}, segmentIDs(segments[0]))
	assert.Equal(t, []string{"a3"}, segmentIDs(segments[1]))
	assert.Equal(t, 0, segments[0].Index)
	assert.Equal(t, 1, segments[1].Index)
}

func TestSegmentObservations_ExactlyMaxDurationStays(t *testing.T) {
	obs := []Observation{
		obsAt("a1", "A", 0),
		obsAt("a2", "A", 3*time.Hour),
	}

	segments := SegmentObservations(obs, 3*time.Hour)

	require.Len(t, segments, 1)
	assert.Equal(t, []string{"a1", "a2"}, segmentIDs(segments[0]))
}

func TestSegmentObservations_UnsortedInterleavedFlights(t *testing.T) {
	obs := []Observation{
		obsAt("b2", "B", 2*time.Hour),
		obsAt("a2", "A", time.Hour),
		obsAt("b1", "B", 0),
		obsAt("a1", "A", 0),
		obsAt("a3", "A", 4*time.Hour),
	}

	segments := SegmentObservations(obs, 3*time.Hour)

	require.Len(t, segments, 3)
	assert.Equal(t, "B", segments[0].FlightID, "first-seen flight comes first")
	assert.Equal(t, []string{"b1", "b2"}, segmentIDs(segments[0]))
	assert.Equal(t, "A", segments[1].FlightID)
	assert.Equal(t, []string{"a1", "a2"}, segmentIDs(segments[1]))
	assert.Equal(t, []string{"a3"}, segmentIDs(segments[2]))
	assert.Equal(t, 0, segments[1].Index)
	assert.Equal(t, 1, segments[2].Index)
}

func TestSegmentObservations_IdenticalTimestampsStayTogether(t *testing.T) {
	obs := []Observation{
		obsAt("a1", "A", 0),
		obsAt("a2", "A", 3*time.Hour+time.Second),
		obsAt("a3", "A", 3*time.Hour+time.Second),
		obsAt("a4", "A", 3*time.Hour+time.Second),
	}

	segments := SegmentObservations(obs, 3*time.Hour)

	require.Len(t, segments, 2)
	assert.Equal(t, []string{"a1"}, segmentIDs(segments[0]))
	assert.Equal(t, []string{"a2", "a3", "a4"}, segmentIDs(segments[1]), "stable order for equal timestamps")
}

func TestSegmentObservations_EdgeCases(t *testing.T) {
	t.Run("no observations", func(t *testing.T) {
		assert.Empty(t, SegmentObservations(nil, time.Hour))
	})

	t.Run("single observation", func(t *testing.T) {
		segments := SegmentObservations([]Observation{obsAt("a1", "A", 0)}, time.Hour)
		require.Len(t, segments, 1)
		assert.Equal(t, []string{"a1"}, segmentIDs(segments[0]))
		assert.Equal(t, segments[0].Start(), segments[0].End())
	})

	t.Run("non-positive duration uses default", func(t *testing.T) {
		obs := []Observation{obsAt("a1", "A", 0), obsAt("a2", "A", DefaultMaxSegmentDuration)}
		assert.Len(t, SegmentObservations(obs, 0), 1)
	})
}

func TestSegmentObservations_DoesNotReorderInput(t *testing.T) {
	obs := []Observation{obsAt("a2", "A", time.Hour), obsAt("a1", "A", 0)}

	_ = SegmentObservations(obs, time.Hour)

	assert.Equal(t, "a2", obs[0].ID)
}

func TestSegmentObservations_Properties(t *testing.T) {
	maxDuration := 2 * time.Hour
	var obs []Observation
	flights := []string{"W-1", "W-2", "W-3"}
	// Irregular spacing with duplicates, shuffled across flights.
	for i := range 120 {
		flight := flights[(i*7)%len(flights)]
		offset := time.Duration((i*37)%600) * time.Minute
		obs = append(obs, obsAt(fmt.Sprintf("%s-%d", flight, i), flight, offset))
	}

	segments := SegmentObservations(obs, maxDuration)

	seen := make(map[string]int)
	lastEnd := make(map[string]time.Time)
	for _, seg := range segments {
		require.NotEmpty(t, seg.Observations)
		assert.LessOrEqual(t, seg.End().Sub(seg.Start()), maxDuration)

		for _, o := range seg.Observations {
			assert.Equal(t, seg.FlightID, o.FlightID, "no cross-flight mixing")
			seen[o.ID]++
		}

		if prev, ok := lastEnd[seg.FlightID]; ok {
			assert.True(t, prev.Before(seg.Start()), "adjacent segments are time-disjoint")
		}
		lastEnd[seg.FlightID] = seg.End()
	}

	assert.Len(t, seen, len(obs))
	for id, n := range seen {
		assert.Equal(t, 1, n, "observation %s duplicated", id)
	}
}
