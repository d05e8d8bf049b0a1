package table_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/elbow/internal/adapters/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *table.Table {
	t.Helper()
	x := make([]float64, 10)
	y := make([]float64, 10)
	for i := range x {
		x[i] = float64(i)
		y[i] = float64(i * 10)
	}
	tb, err := table.New([]string{"x", "y"}, [][]float64{x, y})
	require.NoError(t, err)
	return tb
}

func TestNew(t *testing.T) {
	_, err := table.New([]string{"a", "a"}, [][]float64{{1}, {2}})
	assert.ErrorIs(t, err, table.ErrShape)

	_, err = table.New([]string{"a", "b"}, [][]float64{{1}, {2, 3}})
	assert.ErrorIs(t, err, table.ErrShape)

	_, err = table.New([]string{"a"}, nil)
	assert.ErrorIs(t, err, table.ErrShape)
}

func TestSelectAndMatrix(t *testing.T) {
	tb := sample(t)

	sel, err := tb.Select("y", "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x"}, sel.Columns())
	assert.Equal(t, []float64{30, 3}, sel.Row(3))

	m, err := tb.Matrix("x")
	require.NoError(t, err)
	require.Len(t, m, 10)
	assert.Equal(t, []float64{4}, m[4])

	_, err = tb.Select("z")
	assert.ErrorIs(t, err, table.ErrColumnNotFound)

	col, err := tb.Column("x")
	require.NoError(t, err)
	col[0] = 100
	again, _ := tb.Column("x")
	assert.Equal(t, 0.0, again[0], "Column must return a copy")
}

func TestSample(t *testing.T) {
	tb := sample(t)

	s := tb.Sample(4, 7)
	assert.Equal(t, 4, s.Rows())
	xs, _ := s.Column("x")
	assert.IsNonDecreasing(t, xs)
	for i := range s.Rows() {
		row := s.Row(i)
		assert.Equal(t, row[0]*10, row[1], "rows stay aligned")
	}

	assert.Equal(t, tb.Sample(4, 7).Row(0), s.Row(0), "same seed, same sample")
	assert.Equal(t, 10, tb.Sample(0, 1).Rows())
	assert.Equal(t, 10, tb.Sample(50, 1).Rows())
}

func TestSplit(t *testing.T) {
	tb := sample(t)

	train, val := tb.Split(0.2, 42)
	assert.Equal(t, 8, train.Rows())
	assert.Equal(t, 2, val.Rows())

	seen := map[float64]bool{}
	for _, part := range []*table.Table{train, val} {
		xs, _ := part.Column("x")
		for _, x := range xs {
			assert.False(t, seen[x], "row %v appears twice", x)
			seen[x] = true
		}
	}
	assert.Len(t, seen, 10)

	train, val = tb.Split(0, 1)
	assert.Equal(t, 1, val.Rows(), "validation keeps one row")
	assert.Equal(t, 9, train.Rows())

	train, val = tb.Split(1, 1)
	assert.Equal(t, 1, train.Rows(), "training keeps one row")
	assert.Equal(t, 9, val.Rows())
}

func TestWriteCSV(t *testing.T) {
	tb, err := table.New([]string{"x", "y"}, [][]float64{{1, 2.5}, {3, -4}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tb.WriteCSV(&buf))
	assert.Equal(t, "x,y\n1,3\n2.5,-4\n", buf.String())
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoader(t *testing.T) {
	ctx := context.Background()
	l, err := table.NewLoader(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	t.Run("projects requested columns", func(t *testing.T) {
		path := writeFile(t, "x,noise,label\n1,0.5,10\n2,0.25,20\n3,0.125,30\n")

		tb, err := l.Load(ctx, path, "label", "x")
		require.NoError(t, err)
		assert.Equal(t, []string{"label", "x"}, tb.Columns())
		assert.Equal(t, 3, tb.Rows())
		assert.Equal(t, []float64{20, 2}, tb.Row(1))
	})

	t.Run("loads every column by default", func(t *testing.T) {
		path := writeFile(t, "a,b\n1,true\n2,false\n")

		tb, err := l.Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, tb.Columns())
		b, _ := tb.Column("b")
		assert.Equal(t, []float64{1, 0}, b)
	})

	t.Run("rejects unknown columns", func(t *testing.T) {
		path := writeFile(t, "a\n1\n")

		_, err := l.Load(ctx, path, "missing")
		assert.ErrorIs(t, err, table.ErrColumnNotFound)
	})

	t.Run("rejects text columns", func(t *testing.T) {
		path := writeFile(t, "a,name\n1,alice\n2,bob\n")

		_, err := l.Load(ctx, path, "name")
		assert.ErrorIs(t, err, table.ErrNonNumeric)
	})

	t.Run("round trips WriteCSV output", func(t *testing.T) {
		src := sample(t)
		var buf bytes.Buffer
		require.NoError(t, src.WriteCSV(&buf))
		path := writeFile(t, buf.String())

		tb, err := l.Load(ctx, path, "x", "y")
		require.NoError(t, err)
		assert.Equal(t, src.Rows(), tb.Rows())
		assert.Equal(t, src.Row(9), tb.Row(9))
	})
}
