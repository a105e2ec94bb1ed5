package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed postgres sqlite
var embedMigrations embed.FS

// Set - набор миграций одного хранилища. У каждого набора своя таблица версий,
// поэтому каталог и леджер можно держать как в разных БД, так и в одной.
type Set string

const (
	Catalog Set = "catalog"
	Ledger  Set = "ledger"
)

// Run применяет миграции для диалекта ("postgres" или "sqlite").
// Без явных наборов применяются оба. Повторный запуск на уже размеченной БД ничего не делает.
func Run(ctx context.Context, db *sql.DB, dialect string, logger goose.Logger, sets ...Set) error {
	var gooseDialect string
	switch dialect {
	case "postgres":
		gooseDialect = "postgres"
	case "sqlite":
		gooseDialect = "sqlite3"
	default:
		return fmt.Errorf("no migrations for dialect %q", dialect)
	}
	if len(sets) == 0 {
		sets = []Set{Catalog, Ledger}
	}

	goose.SetBaseFS(embedMigrations)
	if logger != nil {
		goose.SetLogger(logger)
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	for _, set := range sets {
		switch set {
		case Catalog, Ledger:
		default:
			return fmt.Errorf("unknown migration set %q", set)
		}
		goose.SetTableName("goose_" + string(set) + "_version")
		if err := goose.UpContext(ctx, db, dialect+"/"+string(set)); err != nil {
			return fmt.Errorf("failed to run %s migrations: %w", set, err)
		}
	}
	return nil
}
