package database

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrate applies every pending migration. goose works on database/sql, so a
// short-lived stdlib connection is opened next to the pool.
func Migrate(connStr string) error {
	migrationDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer migrationDB.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(migrationDB, "migrations"); err != nil {
		return fmt.Errorf("run up migrations: %w", err)
	}
	return nil
}
