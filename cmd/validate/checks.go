package main

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/sounding-etl/internal/encoder"
)

// ── Phase 1: Profile ──
// Every file carries the UASDC global attributes and the full variable set.

func validateProfile(files []file) *phase {
	p := &phase{name: "Phase 1: UASDC profile"}

	want := map[string]string{
		"Conventions":                   encoder.Conventions,
		"wmo__cf_profile":               encoder.Profile,
		"featureType":                   encoder.FeatureType,
		"platform_name":                 encoder.PlatformName,
		"site_terrain_elevation_height": encoder.TerrainHeight,
		"processing_level":              encoder.Processing,
	}
	for _, f := range files {
		for name, value := range want {
			got, ok := f.ds.StringAttr(name)
			if !ok {
				p.errorf("%s: missing global attribute %s", f.name, name)
			} else if got != value {
				p.errorf("%s: %s=%q, want %q", f.name, name, got, value)
			}
		}
		if len(f.ds.Dims) != 1 || f.ds.Dims[0].Name != encoder.ObsDim {
			p.errorf("%s: want a single %q dimension", f.name, encoder.ObsDim)
		}
		for _, name := range encoder.VariableNames() {
			v, ok := f.ds.Var(name)
			if !ok {
				p.errorf("%s: missing variable %s", f.name, name)
				continue
			}
			for _, attr := range []string{"units", "long_name", "_FillValue", "processing_level"} {
				if _, ok := v.Attr(attr); !ok {
					p.errorf("%s: %s has no %s", f.name, name, attr)
				}
			}
		}
	}
	return p
}

// ── Phase 2: Segment duration ──
// Times are non-decreasing and span at most the configured maximum.

func validateDuration(files []file, maxDuration time.Duration) *phase {
	p := &phase{name: "Phase 2: Segment duration bound"}

	for _, f := range files {
		times, err := f.ds.Float64s("time")
		if err != nil {
			p.errorf("%s: %v", f.name, err)
			continue
		}
		if len(times) == 0 {
			p.errorf("%s: no observations", f.name)
			continue
		}
		for i := 1; i < len(times); i++ {
			if times[i] < times[i-1] {
				p.errorf("%s: time decreases at index %d", f.name, i)
				break
			}
		}
		span := time.Duration((times[len(times)-1] - times[0]) * float64(time.Second))
		if span > maxDuration {
			p.errorf("%s: spans %s, max %s", f.name, span, maxDuration)
		}
	}
	return p
}

// ── Phase 3: Flight consistency ──
// File names agree with the flight and segment attributes, and the segments of
// one flight do not overlap in time.

func validateFlights(files []file) *phase {
	p := &phase{name: "Phase 3: Flight consistency"}

	type span struct {
		name       string
		index      int32
		start, end float64
	}
	byFlight := map[string][]span{}

	for _, f := range files {
		flight, ok := f.ds.StringAttr("flight_id")
		if !ok || flight == "" {
			p.errorf("%s: missing flight_id", f.name)
			continue
		}
		if !strings.HasPrefix(f.name, "WindBorne_"+flight+"_") {
			p.errorf("%s: name does not match flight_id %q", f.name, flight)
		}

		index, ok := segmentIndex(f)
		if !ok {
			p.errorf("%s: missing segment_index", f.name)
			continue
		}
		if !strings.HasSuffix(f.name, "_"+strconv.Itoa(int(index))+".nc") {
			p.errorf("%s: name does not end with segment_index %d", f.name, index)
		}

		times, err := f.ds.Float64s("time")
		if err != nil || len(times) == 0 {
			continue
		}
		byFlight[flight] = append(byFlight[flight], span{f.name, index, times[0], times[len(times)-1]})
	}

	for flight, spans := range byFlight {
		slices.SortFunc(spans, func(a, b span) int { return int(a.index - b.index) })
		for i := 1; i < len(spans); i++ {
			prev, cur := spans[i-1], spans[i]
			if cur.index == prev.index {
				p.errorf("%s: segment %d written twice (%s, %s)", flight, cur.index, prev.name, cur.name)
			} else if cur.start <= prev.end {
				p.errorf("%s: segment %d overlaps segment %d", flight, cur.index, prev.index)
			}
		}
	}
	return p
}

func segmentIndex(f file) (int32, bool) {
	v, ok := f.ds.Attr("segment_index")
	if !ok {
		return 0, false
	}
	index, ok := v.(int32)
	return index, ok
}

// ── Phase 4: Time coverage ──
// time_coverage_start/end equal the first and last encoded times.

func validateCoverage(files []file) *phase {
	p := &phase{name: "Phase 4: Time coverage attributes"}

	for _, f := range files {
		times, err := f.ds.Float64s("time")
		if err != nil || len(times) == 0 {
			continue
		}
		check := func(attr string, want float64) {
			s, ok := f.ds.StringAttr(attr)
			if !ok {
				p.errorf("%s: missing %s", f.name, attr)
				return
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				p.errorf("%s: %s=%q is not RFC 3339", f.name, attr, s)
				return
			}
			if got := float64(t.Unix()); got != math.Floor(want) {
				p.errorf("%s: %s=%s, data says %s", f.name, attr, s,
					time.Unix(int64(want), 0).UTC().Format(time.RFC3339))
			}
		}
		check("time_coverage_start", slices.Min(times))
		check("time_coverage_end", slices.Max(times))
	}
	return p
}

// ── Phase 5: Duplicates ──
// No observation appears in more than one place.

func validateDuplicates(files []file) *phase {
	p := &phase{name: "Phase 5: Duplicate observations"}

	seen := map[string]string{}
	for _, f := range files {
		flight, _ := f.ds.StringAttr("flight_id")
		times, err1 := f.ds.Float64s("time")
		lats, err2 := f.ds.Float64s("lat")
		lons, err3 := f.ds.Float64s("lon")
		alts, err4 := f.ds.Float64s("altitude")
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		for i := range times {
			key := fmt.Sprintf("%s|%v|%v|%v|%v", flight, times[i], lats[i], lons[i], alts[i])
			if prev, dup := seen[key]; dup {
				p.errorf("%s: observation %d duplicates one in %s", f.name, i, prev)
				continue
			}
			seen[key] = f.name
		}
	}
	return p
}
