package auth

import (
	"context"
	"net/http"
	"strings"

	"tenderfinder/internal/apperror"
	"tenderfinder/models"
)

type contextKey struct{}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(contextKey{}).(*models.User)
	return user, ok && user != nil
}

// ErrorWriter отдаёт ошибку клиенту; его передают обработчики, чтобы формат был один
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// BearerToken достаёт токен из заголовка Authorization
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Authenticator - проверка токена с загрузкой пользователя (Service)
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Middleware пускает только запросы с действующим токеном и кладёт пользователя в контекст
func Middleware(a Authenticator, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeErr(w, r, apperror.Unauthorized("authorization required"))
				return
			}
			user, err := a.Authenticate(r.Context(), token)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin ставится после Middleware; флаг берётся из загруженной из БД записи
func RequireAdmin(writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeErr(w, r, apperror.Unauthorized("authorization required"))
				return
			}
			if !user.IsAdmin {
				writeErr(w, r, apperror.Forbidden("admin rights required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
