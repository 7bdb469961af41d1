// Package domain models WindBorne balloon soundings and their conversion into
// per-segment NWP observation records.
//
// # Data Source
//
// Observations come from the WindBorne Data API "super observations" endpoint
// (https://windbornesystems.com/docs/api#super_observations). Super
// observations are averaged over short intervals, which suits NWP assimilation
// better than the raw high-rate telemetry. Every record carries the mission
// name (e.g. "W-1594") when requested with include_mission_name=true; the
// mission name is the flight identity used throughout this package.
//
// # Units
//
// Raw values use the provider's units; derived records use the units the
// WMO UAS Demonstration Campaign NetCDF profile expects:
//
//	field         raw        derived
//	pressure      hPa        Pa            (x 100)
//	temperature   °C         K             (+ 273.15)
//	humidity      % RH       kg/kg         (specific humidity, see below)
//	wind          u, v m/s   speed m/s, direction degrees (from), u, v
//	altitude      m ASL      m ASL
//
// Wind direction follows the meteorological convention: the direction the
// wind blows from, clockwise from north, mod(180 + atan2(u, v) in degrees, 360).
//
// # Humidity
//
// Specific humidity is derived from relative humidity with the saturation
// vapour pressure formula of the ECMWF IFS (Tetens form with Buck 1981
// coefficients over water). Generic psychrometric formulas (Magnus, Bolton)
// differ by up to a few tenths of a percent in the upper troposphere; swapping
// formulas changes every derived value, so do not.
//
// Out-of-range inputs are rejected, never clamped: relative humidity outside
// [0, 100] %, non-positive pressure, or a temperature at or below the formula's
// pole (32.19 K) yield [ErrInvalidMeasurement] and the record is skipped.
//
// # Segments
//
// A flight is split into segments no longer than a maximum duration (3 h by
// default), measured from the first observation of each segment. Each segment
// becomes exactly one output file.
package domain
