package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// tableRow builds a go-pretty row from arbitrary cells.
func tableRow(cells ...any) table.Row {
	row := make(table.Row, len(cells))
	copy(row, cells)
	return row
}

// fmtFloat renders a float for table cells.
func fmtFloat(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
