package domain

import (
	"fmt"
	"math"
)

const (
	hPaToPa         = 100.0
	celsiusToKelvin = 273.15
)

// BuildRecord converts one observation into the output field set. It calls
// SpecificHumidity exactly once.
//
// Missing required fields yield ErrMissingField; values the humidity converter
// rejects yield ErrInvalidMeasurement.
func BuildRecord(obs Observation) (DerivedRecord, error) {
	if err := checkRequired(obs); err != nil {
		return DerivedRecord{}, err
	}

	pressure := *obs.Pressure * hPaToPa
	temperature := *obs.Temperature + celsiusToKelvin

	q, err := SpecificHumidity(*obs.Humidity, temperature, pressure)
	if err != nil {
		return DerivedRecord{}, fmt.Errorf("observation %s: %w", obs.ID, err)
	}

	rec := DerivedRecord{
		ObservationID:       obs.ID,
		FlightID:            obs.FlightID,
		Time:                obs.Timestamp.UTC(),
		Latitude:            *obs.Latitude,
		Longitude:           *obs.Longitude,
		Altitude:            valueOrNaN(obs.Altitude),
		AirPressure:         pressure,
		AirTemperature:      temperature,
		SpecificHumidity:    q,
		HumidityMixingRatio: MixingRatio(q),
		EastwardWind:        math.NaN(),
		NorthwardWind:       math.NaN(),
		WindSpeed:           math.NaN(),
		WindDirection:       math.NaN(),
	}

	if obs.SpeedU != nil && obs.SpeedV != nil {
		u, v := *obs.SpeedU, *obs.SpeedV
		rec.EastwardWind = u
		rec.NorthwardWind = v
		rec.WindSpeed, rec.WindDirection = windFromComponents(u, v)
	}

	return rec, nil
}

// BuildSegmentRecords builds every record of a segment, collecting rejected
// observations instead of stopping at the first failure.
func BuildSegmentRecords(seg Segment) SegmentRecords {
	out := SegmentRecords{Records: make([]DerivedRecord, 0, len(seg.Observations))}
	for _, obs := range seg.Observations {
		rec, err := BuildRecord(obs)
		if err != nil {
			out.Skipped = append(out.Skipped, SkippedRecord{
				ObservationID: obs.ID,
				Timestamp:     obs.Timestamp,
				Err:           err,
			})
			continue
		}
		out.Records = append(out.Records, rec)
	}
	return out
}

// Meta returns the file-level metadata for the built records of seg.
// Start and End cover the encoded records only.
func (r SegmentRecords) Meta(seg Segment) SegmentMeta {
	meta := SegmentMeta{
		FlightID: seg.FlightID,
		Index:    seg.Index,
		Skipped:  len(r.Skipped),
	}
	for i, rec := range r.Records {
		if i == 0 || rec.Time.Before(meta.Start) {
			meta.Start = rec.Time
		}
		if i == 0 || rec.Time.After(meta.End) {
			meta.End = rec.Time
		}
	}
	return meta
}

func checkRequired(obs Observation) error {
	missing := func(field string) error {
		return fmt.Errorf("observation %s: %w: %s", obs.ID, ErrMissingField, field)
	}

	switch {
	case obs.FlightID == "":
		return missing("mission_name")
	case obs.Timestamp.IsZero():
		return missing("timestamp")
	case obs.Latitude == nil:
		return missing("latitude")
	case obs.Longitude == nil:
		return missing("longitude")
	case obs.Pressure == nil:
		return missing("pressure")
	case obs.Temperature == nil:
		return missing("temperature")
	case obs.Humidity == nil:
		return missing("humidity")
	}
	return nil
}

// windFromComponents returns speed (m/s) and the meteorological direction the
// wind blows from (degrees clockwise from north).
func windFromComponents(u, v float64) (speed, direction float64) {
	speed = math.Sqrt(u*u + v*v)
	direction = math.Mod(180+(180/math.Pi)*math.Atan2(u, v), 360)
	return speed, direction
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
