package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func validObservation(id string, offset time.Duration) Observation {
	return Observation{
		ID:          id,
		FlightID:    "W-1594",
		Timestamp:   baseTime.Add(offset),
		Latitude:    ptr(37.42),
		Longitude:   ptr(-122.08),
		Altitude:    ptr(11250),
		Pressure:    ptr(225.5),
		Temperature: ptr(-52.3),
		Humidity:    ptr(41),
		SpeedU:      ptr(3),
		SpeedV:      ptr(4),
	}
}

func TestBuildRecord(t *testing.T) {
	obs := validObservation("obs-1", 0)

	rec, err := BuildRecord(obs)
	require.NoError(t, err)

	wantQ, err := SpecificHumidity(41, 220.85, 22550)
	require.NoError(t, err)

	assert.Equal(t, "obs-1", rec.ObservationID)
	assert.Equal(t, "W-1594", rec.FlightID)
	assert.Equal(t, baseTime, rec.Time)
	assert.Equal(t, 37.42, rec.Latitude)
	assert.Equal(t, -122.08, rec.Longitude)
	assert.Equal(t, 11250.0, rec.Altitude)
	assert.InDelta(t, 22550, rec.AirPressure, 1e-9)
	assert.InDelta(t, 220.85, rec.AirTemperature, 1e-9)
	assert.InDelta(t, wantQ, rec.SpecificHumidity, 1e-15)
	assert.InDelta(t, MixingRatio(wantQ), rec.HumidityMixingRatio, 1e-15)
	assert.Equal(t, 3.0, rec.EastwardWind)
	assert.Equal(t, 4.0, rec.NorthwardWind)
	assert.InDelta(t, 5.0, rec.WindSpeed, 1e-12)
	assert.InDelta(t, 216.8698976, rec.WindDirection, 1e-6)
}

func TestBuildRecord_OptionalFieldsBecomeNaN(t *testing.T) {
	obs := validObservation("obs-2", 0)
	obs.Altitude = nil
	obs.SpeedV = nil

	rec, err := BuildRecord(obs)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(rec.Altitude))
	assert.True(t, math.IsNaN(rec.WindSpeed))
	assert.True(t, math.IsNaN(rec.WindDirection))
	assert.True(t, math.IsNaN(rec.EastwardWind))
	assert.True(t, math.IsNaN(rec.NorthwardWind))
}

func TestWindFromComponents(t *testing.T) {
	tests := []struct {
		name    string
		u, v    float64
		speed   float64
		fromDir float64
	}{
		{name: "northerly", u: 0, v: -5, speed: 5, fromDir: 0},
		{name: "easterly", u: -5, v: 0, speed: 5, fromDir: 90},
		{name: "southerly", u: 0, v: 5, speed: 5, fromDir: 180},
		{name: "westerly", u: 5, v: 0, speed: 5, fromDir: 270},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			speed, dir := windFromComponents(tc.u, tc.v)
			assert.InDelta(t, tc.speed, speed, 1e-12)
			assert.InDelta(t, tc.fromDir, dir, 1e-9)
		})
	}
}

func TestBuildRecord_MissingFields(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(*Observation)
	}{
		{field: "mission_name", mutate: func(o *Observation) { o.FlightID = "" }},
		{field: "timestamp", mutate: func(o *Observation) { o.Timestamp = time.Time{} }},
		{field: "latitude", mutate: func(o *Observation) { o.Latitude = nil }},
		{field: "longitude", mutate: func(o *Observation) { o.Longitude = nil }},
		{field: "pressure", mutate: func(o *Observation) { o.Pressure = nil }},
		{field: "temperature", mutate: func(o *Observation) { o.Temperature = nil }},
		{field: "humidity", mutate: func(o *Observation) { o.Humidity = nil }},
	}

	for _, tc := range tests {
		t.Run(tc.field, func(t *testing.T) {
			obs := validObservation("obs-3", 0)
			tc.mutate(&obs)

			_, err := BuildRecord(obs)
			require.ErrorIs(t, err, ErrMissingField)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestBuildRecord_InvalidHumidity(t *testing.T) {
	obs := validObservation("obs-4", 0)
	obs.Humidity = ptr(150)

	_, err := BuildRecord(obs)
	require.ErrorIs(t, err, ErrInvalidMeasurement)
	assert.Contains(t, err.Error(), "obs-4")
}

func TestBuildSegmentRecords_SkipsBadRecordOnly(t *testing.T) {
	bad := validObservation("obs-b", 10*time.Minute)
	bad.Humidity = ptr(150)

	seg := Segment{
		FlightID: "W-1594",
		Index:    2,
		Observations: []Observation{
			validObservation("obs-a", 0),
			bad,
			validObservation("obs-c", 20*time.Minute),
		},
	}

	out := BuildSegmentRecords(seg)

	require.Len(t, out.Records, 2)
	assert.Equal(t, "obs-a", out.Records[0].ObservationID)
	assert.Equal(t, "obs-c", out.Records[1].ObservationID)
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, "obs-b", out.Skipped[0].ObservationID)
	require.ErrorIs(t, out.Skipped[0].Err, ErrInvalidMeasurement)

	meta := out.Meta(seg)
	assert.Equal(t, SegmentMeta{
		FlightID: "W-1594",
		Index:    2,
		Start:    baseTime,
		End:      baseTime.Add(20 * time.Minute),
		Skipped:  1,
	}, meta)
}

func TestTrailingWindow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 30, 500, time.UTC))

	w := TrailingWindow(clock, 3*time.Hour)

	assert.Equal(t, time.Date(2024, time.April, 26, 12, 10, 30, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, time.April, 26, 15, 10, 30, 0, time.UTC), w.End)
	assert.True(t, w.Valid())
	assert.Equal(t, DefaultWindow, TrailingWindow(clock, 0).End.Sub(TrailingWindow(clock, 0).Start))
	assert.False(t, Window{}.Valid())
}
