package table

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/duckdb/duckdb-go/v2"

	"github.com/okian/elbow/pkg/logger"
)

// Loader reads delimited files through an in-memory DuckDB.
type Loader struct {
	db  *sql.DB
	log logger.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(l logger.Logger) LoaderOption {
	return func(ld *Loader) {
		ld.log = l
	}
}

// NewLoader opens the embedded database.
func NewLoader(ctx context.Context, opts ...LoaderOption) (*Loader, error) {
	l := &Loader{log: logger.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	l.db = db
	return l, nil
}

// Close releases the database.
func (l *Loader) Close() error {
	return l.db.Close()
}

// Load reads path with the header and delimiter sniffed by DuckDB and keeps
// only cols, or every column when cols is empty.
func (l *Loader) Load(ctx context.Context, path string, cols ...string) (*Table, error) {
	src := "read_csv_auto(" + quoteLiteral(path) + ")"

	names, err := l.header(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		cols = names
	}
	for _, c := range cols {
		if !slices.Contains(names, c) {
			return nil, fmt.Errorf("%w: %q in %s", ErrColumnNotFound, c, path)
		}
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	rows, err := l.db.QueryContext(ctx, "SELECT "+strings.Join(quoted, ", ")+" FROM "+src)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	defer rows.Close()

	data := make([][]float64, len(cols))
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	row := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row %d: %w", path, row, err)
		}
		for i, v := range vals {
			f, err := toFloat(v)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %q: %w", path, row, cols[i], err)
			}
			data[i] = append(data[i], f)
		}
		row++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	l.log.Debug(ctx, "table loaded",
		logger.String("path", path),
		logger.Int("rows", row),
		logger.Int("columns", len(cols)),
	)
	return New(cols, data)
}

func (l *Loader) header(ctx context.Context, src string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT * FROM "+src+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", src, err)
	}
	defer rows.Close()
	return rows.Columns()
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case duckdb.Decimal:
		return x.Float64(), nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, nil
	case interface{ Float64() float64 }:
		return x.Float64(), nil
	case nil:
		return 0, fmt.Errorf("%w: null", ErrNonNumeric)
	}
	return 0, fmt.Errorf("%w: %T %v", ErrNonNumeric, v, v)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
