package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"tenderfinder/internal/apperror"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect - движок хранилища. Каталог и леджер могут жить на разных движках.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func init() {
	// modernc регистрирует драйвер как "sqlite", sqlx о нём не знает
	sqlx.BindDriver("sqlite", sqlx.QUESTION)

	// встроенный lower() в sqlite понимает только ASCII, названия лотов - кириллица
	if err := sqlite.RegisterDeterministicScalarFunction("ulower", 1, unicodeLower); err != nil {
		panic(err)
	}
}

// unicodeLower - реализация ulower(x); NULL остаётся NULL
func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Conn - подключение к БД вместе с диалектом
type Conn struct {
	*sqlx.DB
	Dialect Dialect
}

// Open подключается к postgres (lib/pq) или к файлу sqlite (modernc)
func Open(ctx context.Context, driverName, dsn string) (*Conn, error) {
	dialect := Dialect(strings.ToLower(driverName))
	switch dialect {
	case Postgres:
	case SQLite, "sqlite3":
		dialect = SQLite
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}

	dbConn, err := sqlx.ConnectContext(ctx, string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dialect, err)
	}
	return &Conn{DB: dbConn, Dialect: dialect}, nil
}

// sqliteDSN включает внешние ключи (нужны для каскадного удаления), WAL и ожидание блокировок
func sqliteDSN(path string) string {
	if path == "" {
		path = "tenderfinder.db"
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
		"_pragma=busy_timeout(5000)",
		"_time_format=sqlite",
	}
	return dsn + sep + strings.Join(pragmas, "&")
}

// builder возвращает squirrel с плейсхолдерами нужного диалекта
func (c *Conn) builder() sq.StatementBuilderType {
	if c.Dialect == Postgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// likeOp - регистронезависимый LIKE. В sqlite обе стороны приводятся через ulower.
func (c *Conn) likeOp(column, pattern string) sq.Sqlizer {
	if c.Dialect == Postgres {
		return sq.ILike{column: pattern}
	}
	return sq.Expr("ulower("+column+") LIKE ulower(?)", pattern)
}

// snapshotOptions - параметры транзакции для полного чтения каталога
func (c *Conn) snapshotOptions() *sql.TxOptions {
	if c.Dialect == Postgres {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	// в WAL читатель видит снимок на момент первого чтения и не блокирует писателей
	return nil
}

// classify переводит ошибки драйверов в таксономию приложения
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return apperror.Wrap(apperror.KindNotFound, err, "%s not found", msg)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	switch constraintKind(err) {
	case apperror.KindAlreadyExists:
		return apperror.Wrap(apperror.KindAlreadyExists, err, "%s already exists", msg)
	case apperror.KindNotFound:
		return apperror.Wrap(apperror.KindNotFound, err, "%s: referenced record not found", msg)
	}
	if isUnavailable(err) {
		return apperror.StoreUnavailable(fmt.Errorf("%s: %w", msg, err))
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// constraintKind распознаёт нарушения уникальности и внешних ключей в обоих драйверах
func constraintKind(err error) apperror.Kind {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return apperror.KindAlreadyExists
		case "23503":
			return apperror.KindNotFound
		}
		return ""
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return apperror.KindAlreadyExists
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return apperror.KindNotFound
		}
	}
	return ""
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 08 - connection exception, 57P - operator intervention (рестарт сервера)
		class := pqErr.Code.Class()
		return class == "08" || class == "57"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN:
			return true
		}
	}
	return false
}
