// Package encoder lays out a segment's derived records as a UASDC trajectory
// dataset (CF-1.8, WMO-CF-1.0, FM 303-2024).
package encoder

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/couchcryptid/sounding-etl/internal/domain"
	"github.com/couchcryptid/sounding-etl/internal/netcdf"
)

// Global attribute values required by the UASDC profile.
const (
	Conventions   = "CF-1.8, WMO-CF-1.0"
	Profile       = "FM 303-2024"
	FeatureType   = "trajectory"
	PlatformName  = "WindBorne Global Sounding Balloon"
	TerrainHeight = "not applicable"
	Processing    = "b1"

	// ObsDim is the single dimension every variable is laid out along.
	ObsDim = "obs"

	timeUnits = "seconds since 1970-01-01T00:00:00"
)

// flightIDPattern limits flight ids to characters that are safe in a file
// name, short enough that the name stays under common 255-byte limits.
var flightIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// column is one output variable and how to read it from a record.
type column struct {
	name     string
	units    string
	longName string
	value    func(domain.DerivedRecord) float64
}

// columns lists the output variables in file order.
var columns = []column{
	{"time", timeUnits, "Time", func(r domain.DerivedRecord) float64 { return unixSeconds(r.Time) }},
	{"lat", "degrees_north", "Latitude", func(r domain.DerivedRecord) float64 { return r.Latitude }},
	{"lon", "degrees_east", "Longitude", func(r domain.DerivedRecord) float64 { return r.Longitude }},
	{"altitude", "meters_above_sea_level", "Altitude", func(r domain.DerivedRecord) float64 { return r.Altitude }},
	{"air_pressure", "Pa", "Pressure", func(r domain.DerivedRecord) float64 { return r.AirPressure }},
	{"air_temperature", "Kelvin", "Air Temperature", func(r domain.DerivedRecord) float64 { return r.AirTemperature }},
	{"wind_speed", "m/s", "Wind Speed", func(r domain.DerivedRecord) float64 { return r.WindSpeed }},
	{"wind_direction", "degrees", "Wind Direction", func(r domain.DerivedRecord) float64 { return r.WindDirection }},
	{"eastward_wind", "m/s", "Eastward Wind Component", func(r domain.DerivedRecord) float64 { return r.EastwardWind }},
	{"northward_wind", "m/s", "Northward Wind Component", func(r domain.DerivedRecord) float64 { return r.NorthwardWind }},
	{"specific_humidity", "kg/kg", "Specific Humidity", func(r domain.DerivedRecord) float64 { return r.SpecificHumidity }},
	{"humidity_mixing_ratio", "kg/kg", "Humidity Mixing Ratio", func(r domain.DerivedRecord) float64 { return r.HumidityMixingRatio }},
}

// VariableNames returns the output variable names in file order.
func VariableNames() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// Encode builds the dataset for one segment. Errors wrap domain.ErrEncoding.
func Encode(meta domain.SegmentMeta, records []domain.DerivedRecord) (*netcdf.Dataset, error) {
	if !flightIDPattern.MatchString(meta.FlightID) {
		return nil, fmt.Errorf("%w: flight id %q is not usable in a file name", domain.ErrEncoding, meta.FlightID)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: flight %s segment %d has no records", domain.ErrEncoding, meta.FlightID, meta.Index)
	}
	for _, r := range records {
		if err := checkCoordinates(r); err != nil {
			return nil, fmt.Errorf("%w: observation %s: %w", domain.ErrEncoding, r.ObservationID, err)
		}
	}

	ds := &netcdf.Dataset{
		Dims:  []netcdf.Dimension{{Name: ObsDim, Len: len(records)}},
		Attrs: globalAttrs(meta),
		Vars:  make([]netcdf.Variable, 0, len(columns)),
	}
	for _, c := range columns {
		data := make([]float64, len(records))
		for i, r := range records {
			data[i] = c.value(r)
		}
		ds.Vars = append(ds.Vars, netcdf.Variable{
			Name: c.name,
			Dims: []string{ObsDim},
			Attrs: []netcdf.Attribute{
				{Name: "units", Value: c.units},
				{Name: "long_name", Value: c.longName},
				{Name: "_FillValue", Value: math.NaN()},
				{Name: "processing_level", Value: ""},
			},
			Data: data,
		})
	}

	if err := ds.Validate(); err != nil {
		return nil, wrapUnrepresentable(err)
	}
	return ds, nil
}

// Marshal encodes the dataset for one segment to bytes.
func Marshal(meta domain.SegmentMeta, records []domain.DerivedRecord) ([]byte, error) {
	ds, err := Encode(meta, records)
	if err != nil {
		return nil, err
	}
	data, err := ds.MarshalBinary()
	if err != nil {
		return nil, wrapUnrepresentable(err)
	}
	return data, nil
}

// FileName returns the output file name for a segment. The segment index keeps
// two segments of one flight from colliding.
func FileName(meta domain.SegmentMeta) string {
	const layout = "20060102150405"
	return fmt.Sprintf("WindBorne_%s_%sZ_%sZ_%d.nc",
		meta.FlightID,
		meta.Start.UTC().Format(layout),
		meta.End.UTC().Format(layout),
		meta.Index,
	)
}

func globalAttrs(meta domain.SegmentMeta) []netcdf.Attribute {
	return []netcdf.Attribute{
		{Name: "Conventions", Value: Conventions},
		{Name: "wmo__cf_profile", Value: Profile},
		{Name: "featureType", Value: FeatureType},
		{Name: "platform_name", Value: PlatformName},
		{Name: "flight_id", Value: meta.FlightID},
		{Name: "site_terrain_elevation_height", Value: TerrainHeight},
		{Name: "processing_level", Value: Processing},
		{Name: "time_coverage_start", Value: meta.Start.UTC().Format(time.RFC3339)},
		{Name: "time_coverage_end", Value: meta.End.UTC().Format(time.RFC3339)},
		{Name: "segment_index", Value: int32(meta.Index)},
		{Name: "skipped_observations", Value: int32(meta.Skipped)},
	}
}

func checkCoordinates(r domain.DerivedRecord) error {
	switch {
	case r.Time.IsZero() || r.Time.Year() < 1970:
		return fmt.Errorf("time %s out of range", r.Time.Format(time.RFC3339))
	case math.IsNaN(r.Latitude) || r.Latitude < -90 || r.Latitude > 90:
		return fmt.Errorf("latitude %v out of range", r.Latitude)
	case math.IsNaN(r.Longitude) || r.Longitude < -180 || r.Longitude > 360:
		return fmt.Errorf("longitude %v out of range", r.Longitude)
	}
	return nil
}

func wrapUnrepresentable(err error) error {
	if errors.Is(err, netcdf.ErrUnrepresentable) {
		return fmt.Errorf("%w: %w", domain.ErrEncoding, err)
	}
	return err
}

// unixSeconds converts t to fractional seconds since the Unix epoch.
func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
