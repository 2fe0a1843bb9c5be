package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"heart-insights/internal/common"
	"heart-insights/internal/dataset"
	"heart-insights/internal/patient"
)

// ErrFileProcessing is returned when an uploaded batch cannot be parsed.
var ErrFileProcessing = errors.New("file processing failed")

// SchemaMismatchError lists required columns absent from a batch, in
// patient.FeatureColumns order.
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// MissingColumns returns the feature columns not present in columns.
func MissingColumns(columns []string) []string {
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	var missing []string
	for _, c := range patient.FeatureColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// Frame is an uploaded CSV kept as text so cells can be echoed unchanged.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// ReadFrame parses a CSV with a header row.
func ReadFrame(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileProcessing, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrFileProcessing)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return &Frame{Columns: header, Rows: records[1:]}, nil
}

// project returns the required columns of f as text and as numbers.
func (f *Frame) project(columns []string) ([][]string, *dataset.Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = -1
		for j, have := range f.Columns {
			if have == c {
				idx[i] = j
				break
			}
		}
	}

	text := make([][]string, len(f.Rows))
	table := &dataset.Table{Columns: append([]string(nil), columns...), Rows: make([][]float64, len(f.Rows))}
	for r, row := range f.Rows {
		text[r] = make([]string, len(columns))
		table.Rows[r] = make([]float64, len(columns))
		for i, j := range idx {
			cell := strings.TrimSpace(row[j])
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, fmt.Errorf("%w: row %d column %q: %q is not a number", ErrFileProcessing, r+1, columns[i], cell)
			}
			text[r][i] = row[j]
			table.Rows[r][i] = v
		}
	}
	return text, table, nil
}

// BatchResult is a scored batch: the required columns followed by the
// prediction and both class probabilities.
type BatchResult struct {
	Columns     []string
	Rows        [][]string
	Predictions []Prediction
}

// ScoreFrame scores every row of f. Missing required columns yield a
// *SchemaMismatchError and no results.
func (p *Predictor) ScoreFrame(f *Frame) (*BatchResult, error) {
	if missing := MissingColumns(f.Columns); len(missing) > 0 {
		if p.metrics != nil {
			p.metrics.SchemaMismatchInc()
		}
		return nil, &SchemaMismatchError{Missing: missing}
	}
	if len(f.Rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrFileProcessing)
	}

	text, table, err := f.project(patient.FeatureColumns)
	if err != nil {
		return nil, err
	}
	preds, err := p.PredictBatch(table)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{
		Columns: append(append([]string(nil), patient.FeatureColumns...),
			common.ColumnPrediction, common.ColumnProbNoDisease, common.ColumnProbDisease),
		Rows:        make([][]string, len(text)),
		Predictions: preds,
	}
	for i, row := range text {
		res.Rows[i] = append(row,
			strconv.Itoa(preds[i].Label),
			strconv.FormatFloat(preds[i].Probabilities[0], 'f', -1, 64),
			strconv.FormatFloat(preds[i].Probabilities[1], 'f', -1, 64),
		)
	}
	return res, nil
}

// WriteCSV writes the result with a header row and no index column.
func (b *BatchResult) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(b.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(b.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// ScoreCSV reads a batch from r and writes the scored CSV to w.
func (p *Predictor) ScoreCSV(r io.Reader, w io.Writer) (*BatchResult, error) {
	frame, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	res, err := p.ScoreFrame(frame)
	if err != nil {
		return nil, err
	}
	if err := res.WriteCSV(w); err != nil {
		return nil, fmt.Errorf("write predictions: %w", err)
	}
	return res, nil
}
