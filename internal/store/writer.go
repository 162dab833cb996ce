package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

const (
	defaultMaxInsert = 20000
	// Postgres caps bind parameters per statement.
	maxPlaceholders = 65535
)

// TableSpec describes one destination table for chunked upserts.
type TableSpec struct {
	Name string
	// Columns in insert order; must include every conflict key.
	Columns []string
	// ConflictKeys form the natural key. All remaining columns are
	// overwritten from EXCLUDED on conflict.
	ConflictKeys []string
}

// Writer performs idempotent insert-or-update writes in bounded chunks. Each
// chunk commits in its own transaction: a failed chunk never rolls back
// earlier ones, so callers treat a failed write as partially applied and rely
// on re-running the walk to complete it.
type Writer struct {
	conn      sqlx.SqlConn
	maxInsert int
}

// NewWriter wires a writer over a shared connection. maxInsert bounds rows
// per chunk; non-positive selects the default.
func NewWriter(conn sqlx.SqlConn, maxInsert int) *Writer {
	if maxInsert <= 0 {
		maxInsert = defaultMaxInsert
	}
	return &Writer{conn: conn, maxInsert: maxInsert}
}

// Write upserts rows into spec.Name and returns how many rows were committed,
// which on error counts only the chunks that made it.
func (w *Writer) Write(ctx context.Context, spec TableSpec, rows [][]any) (int, error) {
	if len(rows) == 0 {
		logx.Infof("[%s] nothing to write", spec.Name)
		return 0, nil
	}
	chunkSize := w.chunkSize(len(spec.Columns))
	written := 0
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		stmt, err := buildUpsert(spec, len(chunk))
		if err != nil {
			return written, err
		}
		args := make([]any, 0, len(chunk)*len(spec.Columns))
		for _, row := range chunk {
			if len(row) != len(spec.Columns) {
				return written, fmt.Errorf("store: row has %d values, table %s has %d columns", len(row), spec.Name, len(spec.Columns))
			}
			args = append(args, row...)
		}
		err = w.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
			_, execErr := session.ExecCtx(ctx, stmt, args...)
			return execErr
		})
		if err != nil {
			return written, fmt.Errorf("store: upsert chunk into %s: %w", spec.Name, err)
		}
		written += len(chunk)
	}
	logx.Infof("[%s] upsert rows = %d", spec.Name, written)
	return written, nil
}

func (w *Writer) chunkSize(columns int) int {
	size := w.maxInsert
	if columns > 0 {
		if byParams := maxPlaceholders / columns; byParams < size {
			size = byParams
		}
	}
	if size < 1 {
		size = 1
	}
	return size
}

// buildUpsert renders a multi-VALUES insert with ON CONFLICT handling for
// nrows rows. Non-key columns take their EXCLUDED counterparts so a single
// statement can insert new rows and refresh existing ones.
func buildUpsert(spec TableSpec, nrows int) (string, error) {
	if spec.Name == "" || len(spec.Columns) == 0 || nrows <= 0 {
		return "", fmt.Errorf("store: invalid table spec for %q", spec.Name)
	}
	keys := make(map[string]bool, len(spec.ConflictKeys))
	for _, k := range spec.ConflictKeys {
		keys[k] = true
	}
	updates := make([]string, 0, len(spec.Columns))
	for _, col := range spec.Columns {
		if keys[col] {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", spec.Name, strings.Join(spec.Columns, ", "))
	arg := 1
	for row := 0; row < nrows; row++ {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for col := range spec.Columns {
			if col > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteByte(')')
	}
	if len(spec.ConflictKeys) == 0 {
		return b.String(), nil
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s)", strings.Join(spec.ConflictKeys, ", "))
	if len(updates) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		fmt.Fprintf(&b, " DO UPDATE SET %s", strings.Join(updates, ", "))
	}
	return b.String(), nil
}
