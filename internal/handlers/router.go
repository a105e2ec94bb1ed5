package handlers

import (
	"net/http"
	"time"

	"tenderfinder/internal/auth"
	"tenderfinder/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter собирает все маршруты под /api
func NewRouter(h *Handler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	authenticated := auth.Middleware(h.Accounts, h.writeError)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		r.Get("/health", h.HealthHandler)

		r.Post("/register", h.RegisterHandler)
		r.Post("/login", h.LoginHandler)
		r.Post("/products/batch", h.ReceiveProductsHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Post("/logout", h.LogoutHandler)
			r.Get("/check-auth", h.CheckAuthHandler)

			// каталог
			r.Get("/lots", h.GetLotsHandler)
			r.Get("/lots/{id}", h.GetLotHandler)
			r.Get("/categories", h.GetCategoriesHandler)
			r.Get("/stats", h.GetStatsHandler)
			r.Post("/export", h.ExportLotsHandler)

			// поиск
			r.Post("/lots/search", h.AdvancedSearchHandler)
			r.Post("/lots/search-by-budget", h.SearchByBudgetHandler)
			r.Post("/lots/search-by-margin", h.SearchByMarginHandler)
			r.Post("/lots/search-by-margin-percent", h.SearchByMarginPercentHandler)
			r.Post("/lots/search-by-profit-margin", h.SearchByProfitMarginHandler)

			// избранное
			r.Get("/favorites", h.GetFavoritesHandler)
			r.Get("/favorites/export", h.ExportFavoritesHandler)
			r.Get("/favorites/{lotId}", h.GetFavoriteHandler)
			r.Post("/favorites/{lotId}", h.AddFavoriteHandler)
			r.Delete("/favorites/{lotId}", h.RemoveFavoriteHandler)

			// история
			r.Get("/history", h.GetHistoryHandler)
			r.Get("/history/viewed", h.GetViewedHandler)
			r.Post("/history/{lotId}", h.RecordViewHandler)

			// заметки
			r.Get("/notes", h.GetNotesHandler)
			r.Get("/notes/{lotId}", h.GetNoteHandler)
			r.Put("/notes/{lotId}", h.PutNoteHandler)
			r.Delete("/notes/{lotId}", h.DeleteNoteHandler)

			// выигранные тендеры
			r.Get("/won", h.GetWonListHandler)
			r.Get("/won/{lotId}", h.GetWonHandler)
			r.Post("/won/{lotId}", h.MarkWonHandler)
			r.Patch("/won/{lotId}", h.UpdateWonHandler)
			r.Delete("/won/{lotId}", h.DeleteWonHandler)

			r.Get("/me/stats", h.GetUserStatsHandler)

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin(h.writeError))
				r.Get("/users", h.ListUsersHandler)
				r.Post("/users/{id}/toggle-admin", h.ToggleAdminHandler)
				r.Delete("/users/{id}", h.DeleteUserHandler)
			})
		})
	})
	return r
}
