package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/middleware"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// tenantFromCtx extracts the tenant ID from the request context.
// Every query filters on it.
func tenantFromCtx(ctx context.Context) string {
	return middleware.TenantFromContext(ctx)
}

// nullTime converts a nil or zero time to nil for nullable columns.
func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

// notFoundWrap wraps domain.ErrNotFound when err is pgx.ErrNoRows and the
// original error otherwise.
func notFoundWrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// execExpectOne verifies that an Exec affected exactly one row and reports
// miss otherwise.
func execExpectOne(tag pgconn.CommandTag, err, miss error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", msg, miss)
	}
	return nil
}

// collect scans every row with scan.
func collect[T any](rows pgx.Rows, scan func(scannable) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
