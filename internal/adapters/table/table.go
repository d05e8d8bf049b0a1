// Package table holds small numeric datasets in columnar form and loads them
// from delimited files.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"slices"
	"strconv"
)

// Table is a set of equally long float64 columns in a fixed order.
type Table struct {
	names []string
	cols  [][]float64
	pos   map[string]int
}

// New builds a table; cols[i] holds the values of names[i].
func New(names []string, cols [][]float64) (*Table, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("%w: %d names for %d columns", ErrShape, len(names), len(cols))
	}
	t := &Table{
		names: slices.Clone(names),
		cols:  make([][]float64, len(cols)),
		pos:   make(map[string]int, len(names)),
	}
	for i, name := range names {
		if _, dup := t.pos[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrShape, name)
		}
		if len(cols[i]) != len(cols[0]) {
			return nil, fmt.Errorf("%w: column %q has %d rows, want %d", ErrShape, name, len(cols[i]), len(cols[0]))
		}
		t.pos[name] = i
		t.cols[i] = slices.Clone(cols[i])
	}
	return t, nil
}

// Rows is the number of rows.
func (t *Table) Rows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0])
}

// Columns lists column names in order.
func (t *Table) Columns() []string { return slices.Clone(t.names) }

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	i, ok := t.pos[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return slices.Clone(t.cols[i]), nil
}

// Select projects the table onto names, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([][]float64, len(names))
	for i, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return New(names, cols)
}

// Row returns the values of row i across all columns.
func (t *Table) Row(i int) []float64 {
	out := make([]float64, len(t.cols))
	for j, c := range t.cols {
		out[j] = c[i]
	}
	return out
}

// Matrix returns the named columns as row vectors.
func (t *Table) Matrix(names ...string) ([][]float64, error) {
	sel, err := t.Select(names...)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, sel.Rows())
	for i := range out {
		out[i] = sel.Row(i)
	}
	return out, nil
}

// take copies the rows at idx into a new table.
func (t *Table) take(idx []int) *Table {
	out := &Table{names: slices.Clone(t.names), cols: make([][]float64, len(t.cols)), pos: t.pos}
	for j, c := range t.cols {
		col := make([]float64, len(idx))
		for k, i := range idx {
			col[k] = c[i]
		}
		out.cols[j] = col
	}
	return out
}

// Sample draws n rows without replacement, keeping their original order.
// Asking for at least Rows() rows returns a copy of the whole table.
func (t *Table) Sample(n int, seed int64) *Table {
	rows := t.Rows()
	if n <= 0 || n >= rows {
		return t.take(identity(rows))
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible sampling
	idx := rng.Perm(rows)[:n]
	slices.Sort(idx)
	return t.take(idx)
}

// Split shuffles the rows and holds out fraction of them for validation.
// Each side keeps at least one row when the table has two or more.
func (t *Table) Split(fraction float64, seed int64) (train, validation *Table) {
	rows := t.Rows()
	held := int(math.Round(fraction * float64(rows)))
	if rows >= 2 {
		held = max(1, min(held, rows-1))
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible split
	perm := rng.Perm(rows)
	v, tr := perm[:held], perm[held:]
	slices.Sort(v)
	slices.Sort(tr)
	return t.take(tr), t.take(v)
}

// WriteCSV writes a header line followed by every row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.names); err != nil {
		return err
	}
	rec := make([]string, len(t.cols))
	for i := range t.Rows() {
		for j, c := range t.cols {
			rec[j] = strconv.FormatFloat(c[i], 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
