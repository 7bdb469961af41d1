package windborne

import (
	"math"
	"time"

	"github.com/couchcryptid/sounding-etl/internal/domain"
)

// Data API response types.

type pageResponse struct {
	Observations []observation `json:"observations"`
	HasNextPage  bool          `json:"has_next_page"`
	NextPage     string        `json:"next_page"`
}

type observation struct {
	ID          string   `json:"id"`
	MissionName string   `json:"mission_name"`
	Timestamp   *float64 `json:"timestamp"` // seconds since epoch

	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	Altitude         *float64 `json:"altitude"`
	Pressure         *float64 `json:"pressure"`
	Temperature      *float64 `json:"temperature"`
	Humidity         *float64 `json:"humidity"`
	SpeedU           *float64 `json:"speed_u"`
	SpeedV           *float64 `json:"speed_v"`
}

func (o observation) toDomain() domain.Observation {
	return domain.Observation{
		ID:               o.ID,
		FlightID:         o.MissionName,
		Timestamp:        parseTimestamp(o.Timestamp),
		Latitude:         o.Latitude,
		Longitude:        o.Longitude,
		Altitude:         o.Altitude,
		Pressure:         o.Pressure,
		Temperature:      o.Temperature,
		Humidity:         o.Humidity,
		SpeedU:           o.SpeedU,
		SpeedV:           o.SpeedV,
	}
}

// parseTimestamp converts epoch seconds to UTC, rounded to the microsecond.
// A missing or non-finite timestamp yields the zero time.
func parseTimestamp(ts *float64) time.Time {
	if ts == nil || math.IsNaN(*ts) || math.IsInf(*ts, 0) {
		return time.Time{}
	}
	sec, frac := math.Modf(*ts)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*1e3).UTC()
}
