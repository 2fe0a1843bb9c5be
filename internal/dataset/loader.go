// Package dataset loads the labelled heart disease table the models are trained on.
//
// Loads are memoized per absolute source path: the first successful read is
// kept for the lifetime of the process and returned to every later caller.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"heart-insights/internal/patient"

	"github.com/rs/zerolog/log"
)

var (
	// ErrDataUnavailable is returned when the source file cannot be located.
	ErrDataUnavailable = errors.New("dataset unavailable")
	// ErrDataCorrupt is returned for every other read or parse failure.
	ErrDataCorrupt = errors.New("dataset corrupt")
)

// Dataset is the loaded training data. It must not be mutated after Load.
type Dataset struct {
	Source   string
	Features *Table // patient.FeatureColumns, in that order
	Labels   []int  // 0 or 1, aligned with Features.Rows
	Full     *Table // source columns plus the smoke back-fill, for exploratory views
}

// Loader memoizes datasets by source path.
type Loader struct {
	mu    sync.Mutex
	cache map[string]*Dataset
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{cache: make(map[string]*Dataset)}
}

// Load returns the dataset at path, reading it on first use.
func (l *Loader) Load(path string) (*Dataset, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if ds, ok := l.cache[key]; ok {
		return ds, nil
	}

	ds, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	l.cache[key] = ds
	return ds, nil
}

// LoadFile reads the dataset without memoization.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrDataUnavailable, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrDataCorrupt, path, err)
	}
	defer f.Close()

	ds, err := Read(f)
	if err != nil {
		return nil, err
	}
	ds.Source = path

	log.Info().
		Str("source", path).
		Int("rows", ds.Features.Len()).
		Int("positives", countPositives(ds.Labels)).
		Msg("Dataset loaded")

	return ds, nil
}

// Read parses a labelled CSV. A missing smoke column is added with 0 for every
// row; columns outside the schema are dropped.
func Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty file", ErrDataCorrupt)
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrDataCorrupt, err)
	}

	known := make(map[string]bool, patient.NumFeatures+1)
	for _, c := range patient.FeatureColumns {
		known[c] = true
	}
	known[patient.ColTarget] = true

	// srcIdx maps full-table column position to the CSV field index.
	var fullCols []string
	var srcIdx []int
	seen := make(map[string]bool)
	for i, raw := range header {
		name := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		if !known[name] {
			log.Warn().Str("column", name).Msg("Dropping column outside the patient schema")
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrDataCorrupt, name)
		}
		seen[name] = true
		fullCols = append(fullCols, name)
		srcIdx = append(srcIdx, i)
	}

	if !seen[patient.ColTarget] {
		return nil, fmt.Errorf("%w: missing label column %q", ErrDataCorrupt, patient.ColTarget)
	}
	for _, c := range patient.FeatureColumns {
		if c != patient.ColSmoke && !seen[c] {
			return nil, fmt.Errorf("%w: missing column %q", ErrDataCorrupt, c)
		}
	}

	backfillSmoke := !seen[patient.ColSmoke]
	if backfillSmoke {
		fullCols = append(fullCols, patient.ColSmoke)
	}

	full := &Table{Columns: fullCols}
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataCorrupt, err)
		}

		row := make([]float64, len(fullCols))
		for j, i := range srcIdx {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %q: %v", ErrDataCorrupt, line, fullCols[j], err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: line %d column %q: value %v is not finite", ErrDataCorrupt, line, fullCols[j], v)
			}
			row[j] = v
		}
		// backfilled smoke stays at the zero value
		full.Rows = append(full.Rows, row)
	}

	if full.Len() == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrDataCorrupt)
	}

	targets, _ := full.Column(patient.ColTarget)
	labels := make([]int, len(targets))
	for i, v := range targets {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("%w: line %d: target must be 0 or 1, got %v", ErrDataCorrupt, i+2, v)
		}
		labels[i] = int(v)
	}

	features, err := full.Select(patient.FeatureColumns)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataCorrupt, err)
	}

	if backfillSmoke {
		log.Debug().Msg("Source has no smoke column, defaulting every row to 0")
	}

	return &Dataset{Features: features, Labels: labels, Full: full}, nil
}

func countPositives(labels []int) int {
	n := 0
	for _, y := range labels {
		n += y
	}
	return n
}
