package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"

	"tenderfinder/internal/apperror"
	"tenderfinder/internal/auth"
	"tenderfinder/internal/scoring"
	"tenderfinder/internal/validation"
	"tenderfinder/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ограничение размера тела, чтобы избежать DoS
const maxBodyBytes = 1 << 20

// Handler собирает сервисы, нужные HTTP-слою
type Handler struct {
	Catalog  CatalogStore
	Search   SearchService
	Ledger   LedgerService
	Accounts AccountService
	Ingest   BatchReceiver
	Engine   *scoring.Engine
	// Probes - хранилища, проверяемые в /health, по имени
	Probes map[string]Pinger
	Log    *zap.Logger
}

// NewHandler создает новый Handler
func NewHandler(catalog CatalogStore, searcher SearchService, ledger LedgerService, accounts AccountService,
	receiver BatchReceiver, engine *scoring.Engine, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Catalog:  catalog,
		Search:   searcher,
		Ledger:   ledger,
		Accounts: accounts,
		Ingest:   receiver,
		Engine:   engine,
		Probes:   map[string]Pinger{},
		Log:      log,
	}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HealthHandler проверяет доступность хранилищ
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.Probes[name].PingContext(r.Context()); err != nil {
			h.Log.Warn("health check failed", zap.String("store", name), zap.Error(err))
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]interface{}{"status": overall, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   apperror.Kind `json:"error"`
	Message string        `json:"message"`
}

// writeError отдаёт {"error": kind, "message": text}; внутренние ошибки клиенту не раскрываются
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Error: kind, Message: apperror.Message(err)})
}

// decodeJSON читает тело запроса и проверяет теги validate
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation("request body is empty")
		}
		return apperror.Wrap(apperror.KindValidation, err, "invalid JSON format")
	}
	return validation.Struct(dst)
}

// idParam парсит положительный числовой параметр пути
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.Validation("invalid %s", name)
	}
	return id, nil
}

// currentUser - пользователь, положенный в контекст auth.Middleware
func currentUser(r *http.Request) (*models.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, apperror.Unauthorized("authorization required")
	}
	return user, nil
}

type messageResponse struct {
	Message string `json:"message"`
}
