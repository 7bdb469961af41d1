package domain

import "errors"

// Fetch-stage errors. Fatal to the run.
var (
	ErrAuth               = errors.New("authentication failed")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrEmptyResult        = errors.New("empty result")
)

// Record-stage errors. The record is skipped and counted.
var (
	ErrInvalidMeasurement = errors.New("invalid measurement")
	ErrMissingField       = errors.New("missing field")
)

// ErrEncoding marks a segment that could not be represented in the output
// layout. Only that segment's file is skipped.
var ErrEncoding = errors.New("encoding error")

// ErrNoData is returned by the pipeline when the window yielded nothing to convert.
var ErrNoData = errors.New("no data")

// ErrSegmentsFailed is returned by the pipeline when at least one segment
// could not be written. Sibling segments are still written.
var ErrSegmentsFailed = errors.New("segments failed")
