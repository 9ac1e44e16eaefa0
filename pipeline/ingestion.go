// Package pipeline loads, cleans and serves the tax bracket dataset used by
// the dashboard and the model trainer.
package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"taxanalyzer/ml"
)

// Column names of the semicolon separated source file.
const (
	ColumnYear         = "Year"
	ColumnBottomRate   = "Bottom Bracket Rate %"
	ColumnBottomIncome = "Bottom Bracket Taxable Income up to"
	ColumnTopRate      = "Top Bracket Rate %"
	ColumnTopIncome    = "Top Bracket Taxable Income Over"
)

// Record 一年的税级数据
type Record struct {
	Year         int     `json:"year"`
	BottomRate   float64 `json:"bottom_rate"`
	BottomIncome float64 `json:"bottom_income"`
	TopRate      float64 `json:"top_rate"`
	TopIncome    float64 `json:"top_income"`

	// Missing lists the columns that were empty or unparseable.
	Missing []string `json:"-"`
}

// Default returns the built-in 2012–2020 federal bracket rows.
func Default() []Record {
	return []Record{
		{Year: 2020, BottomRate: 10, BottomIncome: 19400, TopRate: 37, TopIncome: 622050},
		{Year: 2019, BottomRate: 10, BottomIncome: 19400, TopRate: 37, TopIncome: 612350},
		{Year: 2018, BottomRate: 10, BottomIncome: 19050, TopRate: 37, TopIncome: 600000},
		{Year: 2017, BottomRate: 10, BottomIncome: 18650, TopRate: 39.6, TopIncome: 470700},
		{Year: 2016, BottomRate: 10, BottomIncome: 18550, TopRate: 39.6, TopIncome: 466950},
		{Year: 2015, BottomRate: 10, BottomIncome: 18450, TopRate: 39.6, TopIncome: 464850},
		{Year: 2014, BottomRate: 10, BottomIncome: 18150, TopRate: 39.6, TopIncome: 457600},
		{Year: 2013, BottomRate: 10, BottomIncome: 17850, TopRate: 39.6, TopIncome: 450000},
		{Year: 2012, BottomRate: 10, BottomIncome: 17400, TopRate: 35, TopIncome: 388350},
	}
}

// LoadFile reads a dataset file from disk.
func LoadFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

// Parse reads semicolon separated rows with a header line. Columns are
// matched by name; unknown and unnamed columns are ignored.
func Parse(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty dataset")
		}
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name != "" {
			index[name] = i
		}
	}
	if _, ok := index[ColumnYear]; !ok {
		return nil, fmt.Errorf("missing %q column", ColumnYear)
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(row) {
			continue
		}
		records = append(records, parseRow(row, index))
	}
	return records, nil
}

func parseRow(row []string, index map[string]int) Record {
	var rec Record
	cell := func(column string) (string, bool) {
		i, ok := index[column]
		if !ok || i >= len(row) {
			rec.Missing = append(rec.Missing, column)
			return "", false
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			rec.Missing = append(rec.Missing, column)
			return "", false
		}
		return value, true
	}
	number := func(column string) float64 {
		value, ok := cell(column)
		if !ok {
			return 0
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			rec.Missing = append(rec.Missing, column)
			return 0
		}
		return f
	}

	if value, ok := cell(ColumnYear); ok {
		year, err := strconv.Atoi(value)
		if err != nil {
			rec.Missing = append(rec.Missing, ColumnYear)
		}
		rec.Year = year
	}
	rec.BottomRate = number(ColumnBottomRate)
	rec.BottomIncome = number(ColumnBottomIncome)
	rec.TopRate = number(ColumnTopRate)
	rec.TopIncome = number(ColumnTopIncome)
	return rec
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Features returns the training matrix in ml.FeatureNames order
// ([year, bottom bracket income]) and the bottom bracket rate as target.
func Features(records []Record) ([][]float64, []float64) {
	features := make([][]float64, 0, len(records))
	targets := make([]float64, 0, len(records))
	for _, rec := range records {
		features = append(features, ml.FeatureVector(rec.BottomIncome, rec.Year))
		targets = append(targets, rec.BottomRate)
	}
	return features, targets
}
