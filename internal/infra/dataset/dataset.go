// Package dataset imports training samples and yield histories from files.
package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/agrofocus/yield-service/internal/domain/yield"
	apperrors "github.com/agrofocus/yield-service/pkg/errors"
)

var (
	sampleColumns = []string{"ndvi_mean", "gdd_total", "precip_total"}
	yieldColumns  = []string{"produtividade", "yield"}
	// Columns as reported in errors, label last.
	reportColumns = []string{"ndvi_mean", "gdd_total", "precip_total", "produtividade"}
)

// LoadSamples reads labeled samples from a .json or .xlsx file.
func LoadSamples(path string) ([]yield.LabeledSample, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSONSamples(path)
	case ".xlsx":
		return loadXLSXSamples(path)
	default:
		return nil, invalid("file", fmt.Sprintf("unsupported extension %q, use .json or .xlsx", filepath.Ext(path)))
	}
}

// LoadHistory reads a [{year, yield}] JSON file.
func LoadHistory(path string) ([]yield.YearYield, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var history []yield.YearYield
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, invalid("file", "history must be a JSON array of {year, yield}: "+err.Error())
	}
	return history, nil
}

type jsonSample struct {
	NDVIMean      *float64 `json:"ndvi_mean"`
	GDDTotal      *float64 `json:"gdd_total"`
	PrecipTotal   *float64 `json:"precip_total"`
	Produtividade *float64 `json:"produtividade"`
	Yield         *float64 `json:"yield"`
}

func loadJSONSamples(path string) ([]yield.LabeledSample, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	var rows []jsonSample
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, invalid("file", "samples must be a JSON array: "+err.Error())
	}
	out := make([]yield.LabeledSample, 0, len(rows))
	for i, row := range rows {
		label := row.Produtividade
		if label == nil {
			label = row.Yield
		}
		values := []*float64{row.NDVIMean, row.GDDTotal, row.PrecipTotal, label}
		for j, v := range values {
			if v == nil {
				return nil, invalid(fmt.Sprintf("row %d column %s", i+1, reportColumns[j]), "missing value")
			}
		}
		out = append(out, yield.LabeledSample{
			FeatureVector: yield.FeatureVector{NDVIMean: *row.NDVIMean, GDDTotal: *row.GDDTotal, PrecipTotal: *row.PrecipTotal},
			Yield:         *label,
		})
	}
	return out, nil
}

func loadXLSXSamples(path string) ([]yield.LabeledSample, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, invalid("file", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, invalid("file", "sheet is empty")
	}

	index, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	out := make([]yield.LabeledSample, 0, len(rows)-1)
	for r, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		var values [4]float64
		for j, col := range reportColumns {
			c := index[j]
			cell := ""
			if c < len(row) {
				cell = strings.TrimSpace(row[c])
			}
			// Spreadsheet row numbers are 1-based and the header occupies row 1.
			field := fmt.Sprintf("row %d column %s", r+2, col)
			if cell == "" {
				return nil, invalid(field, "missing value")
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", "."), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, invalid(field, fmt.Sprintf("%q is not a number", cell))
			}
			values[j] = v
		}
		out = append(out, yield.LabeledSample{
			FeatureVector: yield.FeatureVector{NDVIMean: values[0], GDDTotal: values[1], PrecipTotal: values[2]},
			Yield:         values[3],
		})
	}
	return out, nil
}

// headerIndex maps feature columns then the label column to their positions.
func headerIndex(header []string) ([4]int, error) {
	var index [4]int
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for j, col := range sampleColumns {
		pos, ok := positions[col]
		if !ok {
			return index, invalid("header", "missing column "+col)
		}
		index[j] = pos
	}
	index[3] = -1
	for _, col := range yieldColumns {
		if pos, ok := positions[col]; ok {
			index[3] = pos
			break
		}
	}
	if index[3] < 0 {
		return index, invalid("header", "missing column produtividade or yield")
	}
	return index, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func invalid(field, reason string) error {
	return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid dataset", &yield.InvalidInputError{Field: field, Reason: reason})
}
