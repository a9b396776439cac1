package database

import (
	"database/sql"
	"embed"
	"fmt"
)

//go:embed schema/*.sql
var schemas embed.FS

const (
	SchemaSearch = "search"
	SchemaLegacy = "legacy"
)

// Migrate applies one of the embedded schemas. Every statement is idempotent.
func Migrate(db *sql.DB, name string) error {
	b, err := schemas.ReadFile("schema/" + name + ".sql")
	if err != nil {
		return fmt.Errorf("read schema %s: %w", name, err)
	}

	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("apply schema %s: %w", name, err)
	}
	return nil
}
