// Command validate re-reads a directory of converted NetCDF files and checks
// them against the output contract: profile attributes and variables, the
// segment duration bound, flight consistency, time coverage attributes and
// duplicate observations across files.
//
// Usage:
//
//	go run ./cmd/validate -dir ./out -max-duration 3h
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/couchcryptid/sounding-etl/internal/domain"
	"github.com/couchcryptid/sounding-etl/internal/netcdf"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "directory containing WindBorne_*.nc files")
	maxDuration := flag.Duration("max-duration", domain.DefaultMaxSegmentDuration, "longest time span one file may cover")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*dir, *maxDuration))
}

func run(dir string, maxDuration time.Duration) int {
	fmt.Println("=== Sounding Output Validation ===")
	fmt.Println()

	files, err := loadFiles(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no WindBorne_*.nc files in %s\n", dir)
		return 1
	}

	phases := validate(files, maxDuration)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Files: %d, observations: %d, flights: %d\n", len(files), countObservations(files), countFlights(files))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validate(files []file, maxDuration time.Duration) []*phase {
	return []*phase{
		validateProfile(files),
		validateDuration(files, maxDuration),
		validateFlights(files),
		validateCoverage(files),
		validateDuplicates(files),
	}
}

// file is one decoded output file.
type file struct {
	name string
	ds   *netcdf.Dataset
}

func loadFiles(dir string) ([]file, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "WindBorne_*.nc"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	files := make([]file, 0, len(paths))
	for _, path := range paths {
		ds, err := netcdf.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		files = append(files, file{name: filepath.Base(path), ds: ds})
	}
	return files, nil
}

func countObservations(files []file) int {
	n := 0
	for _, f := range files {
		if len(f.ds.Dims) > 0 {
			n += f.ds.Dims[0].Len
		}
	}
	return n
}

func countFlights(files []file) int {
	flights := map[string]bool{}
	for _, f := range files {
		id, _ := f.ds.StringAttr("flight_id")
		flights[id] = true
	}
	return len(flights)
}
