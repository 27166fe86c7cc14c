// Package dataset loads observation CSVs and assembles the named data
// mapping a model is compiled against: one array per column plus the derived
// observation count N. Files are loaded once and never mutated.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/calder-labs/kiln/internal/model"
)

// Dataset is one loaded observation set. Every column shares length N.
type Dataset struct {
	Name    string
	N       int
	columns map[string][]float64
	order   []string
}

// Load reads one CSV file (first row = column names, remaining rows =
// observations, all fields numeric).
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: need a header row and at least one observation", path)
	}

	header := records[0]
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		if header[i] == "" {
			return nil, fmt.Errorf("%s: column %d has an empty name", path, i+1)
		}
	}

	d := &Dataset{
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		N:       len(records) - 1,
		columns: make(map[string][]float64, len(header)),
		order:   header,
	}
	for _, name := range header {
		if _, dup := d.columns[name]; dup {
			return nil, fmt.Errorf("%s: duplicate column %q", path, name)
		}
		d.columns[name] = make([]float64, 0, d.N)
	}

	for rowIdx, record := range records[1:] {
		for colIdx, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d, column %q: invalid number %q",
					path, rowIdx+2, header[colIdx], field)
			}
			name := header[colIdx]
			d.columns[name] = append(d.columns[name], v)
		}
	}

	return d, nil
}

// Columns returns the column names in file order.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.order...)
}

// Column returns one column's values.
func (d *Dataset) Column(name string) ([]float64, bool) {
	col, ok := d.columns[name]
	return col, ok
}

// Mapping assembles the named data mapping the model compiler consumes:
// every column as an array plus the scalar observation count N.
func (d *Dataset) Mapping() *model.Data {
	arrays := make(map[string][]float64, len(d.columns))
	for name, col := range d.columns {
		arrays[name] = col
	}
	return &model.Data{
		Arrays:  arrays,
		Scalars: map[string]float64{"N": float64(d.N)},
	}
}
