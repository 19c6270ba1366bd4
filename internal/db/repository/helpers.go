// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cubesql/internal/domain"
)

const dbTimeLayout = "2006-01-02 15:04:05"

func parseDBTime(value string, field string) time.Time {
	ts, err := time.Parse(dbTimeLayout, value)
	if err != nil {
		slog.Default().Warn("failed to parse db timestamp", "field", field, "value", value, "error", err)
	}
	return ts
}

func mapDBError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound(format, args...)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrConflict(format, args...)
	}
	return err
}
