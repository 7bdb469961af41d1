package domain

import "time"

// Observation is one super observation as returned by the WindBorne Data API.
// Measurement fields are nil when the provider did not report them.
type Observation struct {
	ID        string
	FlightID  string
	Timestamp time.Time

	Latitude  *float64
	Longitude *float64
	Altitude  *float64 // meters above sea level

	Pressure    *float64 // hPa
	Temperature *float64 // °C
	Humidity    *float64 // relative humidity, %
	SpeedU      *float64 // eastward wind, m/s
	SpeedV      *float64 // northward wind, m/s
}

// Segment is a time-bounded run of one flight's observations, ordered by
// timestamp. Each segment maps to exactly one output file.
type Segment struct {
	FlightID     string
	Index        int
	Observations []Observation
}

// Start returns the timestamp of the first observation.
func (s Segment) Start() time.Time {
	if len(s.Observations) == 0 {
		return time.Time{}
	}
	return s.Observations[0].Timestamp
}

// End returns the timestamp of the last observation.
func (s Segment) End() time.Time {
	if len(s.Observations) == 0 {
		return time.Time{}
	}
	return s.Observations[len(s.Observations)-1].Timestamp
}

// DerivedRecord is an observation converted to output units, with specific
// humidity in place of relative humidity. Optional fields hold NaN when absent.
type DerivedRecord struct {
	ObservationID string
	FlightID      string
	Time          time.Time

	Latitude  float64
	Longitude float64
	Altitude  float64

	AirPressure         float64 // Pa
	AirTemperature      float64 // K
	SpecificHumidity    float64 // kg/kg
	HumidityMixingRatio float64 // kg/kg

	EastwardWind  float64 // m/s
	NorthwardWind float64 // m/s
	WindSpeed     float64 // m/s
	WindDirection float64 // degrees, direction the wind blows from
}

// SkippedRecord describes an observation the record builder rejected.
type SkippedRecord struct {
	ObservationID string
	Timestamp     time.Time
	Err           error
}

// SegmentRecords holds the outcome of building every record in a segment.
type SegmentRecords struct {
	Records []DerivedRecord
	Skipped []SkippedRecord
}

// SegmentMeta is the file-level metadata of one encoded segment.
type SegmentMeta struct {
	FlightID string
	Index    int
	Start    time.Time
	End      time.Time
	Skipped  int
}

// OutputFile describes a file written for one segment.
type OutputFile struct {
	Path     string    `json:"path"`
	FlightID string    `json:"flight_id"`
	Segment  int       `json:"segment"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Records  int       `json:"records"`
	Skipped  int       `json:"skipped"`
	Bytes    int64     `json:"bytes"`
}
