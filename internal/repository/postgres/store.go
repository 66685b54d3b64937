// Package postgres is the Postgres backend of the transaction store. It
// mirrors the SQLite repositories in the parent package.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/wakala/mpesa-analytics/internal/repository"
)

// DBTX is the subset of *pgxpool.Pool the repositories use.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Open runs the migrations, connects and returns the repositories.
func Open(ctx context.Context, dsn, migrationURL string, log zerolog.Logger) (*repository.Stores, error) {
	if err := RunMigrations(migrationURL); err != nil {
		return nil, err
	}

	pool, err := NewPool(ctx, dsn, DefaultPoolConfig(), log)
	if err != nil {
		return nil, err
	}

	return &repository.Stores{
		Transactions: NewTransactionRepo(pool),
		Summaries:    NewSummaryRepo(pool),
		Alerts:       NewAlertRepo(pool),
		Ping:         pool.Ping,
		Close: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

// where builds a " WHERE ..." clause with numbered placeholders.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(w.args))))
}

func (w *where) raw(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the suffix.
func (w *where) page(page, limit int) string {
	limit, offset := repository.Pagination(page, limit)
	w.args = append(w.args, limit, offset)
	n := len(w.args)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", n-1, n)
}
