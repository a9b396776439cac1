// Package legacy reads the legacy relational schema. Every query is read only,
// runs under the configured per-query timeout and pages by ascending id.
package legacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"novelhub/pkg/database"
)

type Source struct {
	DB      *sql.DB
	Driver  string
	Timeout time.Duration
}

func NewSource(db *sql.DB, driver string, timeout time.Duration) *Source {
	return &Source{DB: db, Driver: driver, Timeout: timeout}
}

func (s *Source) query(ctx context.Context, q string, args ...any) (*sql.Rows, context.CancelFunc, error) {
	ctx, cancel := s.withTimeout(ctx)
	rows, err := s.DB.QueryContext(ctx, database.Rebind(s.Driver, q), args...)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return rows, cancel, nil
}

// Check verifies the legacy schema is reachable by querying the novels table.
func (s *Source) Check(ctx context.Context) error {
	rows, cancel, err := s.query(ctx, `SELECT id FROM novels LIMIT 1`)
	if err != nil {
		return fmt.Errorf("check legacy schema: %w", err)
	}
	defer cancel()
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

func (s *Source) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

// pageLimit treats a non-positive limit as "no limit".
func pageLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func (s *Source) limitClause() string {
	if s.Driver == database.DriverPostgres {
		return " LIMIT NULLIF(?, -1)"
	}
	return " LIMIT ?"
}

// ParseLabels decodes a stored label list: a JSON array of strings when it
// parses as one, otherwise a comma separated list.
func ParseLabels(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var labels []string
		if err := json.Unmarshal([]byte(raw), &labels); err == nil {
			return labels
		}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func wrap(op string, err error) error {
	return fmt.Errorf("legacy %s: %w", op, err)
}
