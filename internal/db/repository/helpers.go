// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"metricql/internal/domain"
)

// timeLayout is how timestamps are stored in TEXT columns.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// mapDBError converts sql.ErrNoRows into a NotFoundError for what.
func mapDBError(err error, what string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound("%s not found", fmt.Sprintf(what, args...))
	}
	return err
}

// sqlBuilder is the statement builder shared by the repositories.
var sqlBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
