package testutils

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"tenderfinder/db"
	"tenderfinder/db/migrations"
	"tenderfinder/internal/auth"
	"tenderfinder/internal/handlers"
	"tenderfinder/internal/ingest"
	"tenderfinder/internal/ledger"
	"tenderfinder/internal/scoring"
	"tenderfinder/internal/search"
	"tenderfinder/models"

	"github.com/go-chi/chi/v5"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParams подставляет параметры пути в контекст chi запроса для тестов.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for k, v := range params {
		chiCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

// WithUser кладёт пользователя в контекст так же, как это делает auth.Middleware
func WithUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), user))
}

// Env - приложение целиком поверх временного файла sqlite
type Env struct {
	Conn     *db.Conn
	Catalog  *db.Catalog
	Users    *db.Users
	Accounts *auth.Service
	Handler  *handlers.Handler
	Router   http.Handler
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "tenderfinder.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn.DB.DB, string(conn.Dialect), goose.NopLogger()))

	engine := scoring.NewEngine(scoring.DefaultConfig())
	catalog := db.NewCatalog(conn)
	users := db.NewUsers(conn)
	accounts := auth.NewService(users, auth.NewTokenManager("test-secret", time.Hour), bcrypt.MinCost, nil)

	h := handlers.NewHandler(
		catalog,
		search.NewService(catalog, engine, search.Config{ResultLimit: 20, ScanTimeout: 5 * time.Second}, nil),
		ledger.NewService(db.NewLedger(conn), catalog, engine, nil),
		accounts,
		ingest.NewReceiver(nil),
		engine,
		nil,
	)
	h.Probes["catalog"] = conn

	return &Env{
		Conn:     conn,
		Catalog:  catalog,
		Users:    users,
		Accounts: accounts,
		Handler:  h,
		Router:   handlers.NewRouter(h, 0),
	}
}

// Token регистрирует пользователя и возвращает его токен
func (e *Env) Token(t *testing.T, username string) (string, *models.User) {
	t.Helper()
	session, err := e.Accounts.Register(context.Background(), username, username+"@example.com", "password")
	require.NoError(t, err)
	return session.Token, session.User
}

// AdminToken создаёт администратора через сид и логинится им
func (e *Env) AdminToken(t *testing.T) (string, *models.User) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.Accounts.SeedAdmin(ctx, "admin", "admin@example.com", "admin123"))
	session, err := e.Accounts.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	return session.Token, session.User
}

// Lot добавляет лот в каталог
func (e *Env) Lot(t *testing.T, lot models.Lot) models.Lot {
	t.Helper()
	require.NoError(t, e.Catalog.CreateLot(context.Background(), &lot))
	return lot
}
