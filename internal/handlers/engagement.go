package handlers

import (
	"net/http"
	"strconv"

	"tenderfinder/internal/apperror"
	"tenderfinder/internal/export"
	"tenderfinder/internal/ledger"
	"tenderfinder/internal/scoring"
	"tenderfinder/models"

	"github.com/shopspring/decimal"
)

// deliveryQuery читает необязательный delivery_percent из query
func deliveryQuery(r *http.Request) (*decimal.Decimal, error) {
	raw := r.URL.Query().Get("delivery_percent")
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperror.Validation("invalid delivery_percent")
	}
	return &d, nil
}

// userAndLot - общий разбор для маршрутов /{lotId}
func (h *Handler) userAndLot(w http.ResponseWriter, r *http.Request) (*models.User, int64, bool) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return nil, 0, false
	}
	lotID, err := idParam(r, "lotId")
	if err != nil {
		h.writeError(w, r, err)
		return nil, 0, false
	}
	return user, lotID, true
}

// Избранное

func (h *Handler) GetFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	delivery, err := deliveryQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.Ledger.FavoritesReport(r.Context(), user.ID, delivery)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ExportFavoritesHandler выгружает избранное с прогнозами в xlsx
func (h *Handler) ExportFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.Ledger.FavoritesReport(r.Context(), user.ID, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	scored := make([]scoring.ScoredLot, 0, len(report.Favorites))
	for _, f := range report.Favorites {
		scored = append(scored, f.ScoredLot)
	}
	h.writeXLSX(w, r, "tenderfinder_favorites", func(w http.ResponseWriter) error {
		return export.Favorites(w, scored)
	})
}

func (h *Handler) GetFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	user, lotID, ok := h.userAndLot(w, r)
	if !ok {
		return
	}
	isFavorite, err := h.Ledger.IsFavorite(r.Context(), user.ID, lotID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"lot_id": lotID, "is_favorite": isFavorite})
}

func (h *Handler) AddFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	user, lotID, ok := h.userAndLot(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.AddFavorite(r.Context(), user.ID, lotID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "added to favorites"})
}

func (h *Handler) RemoveFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	user, lotID, ok := h.userAndLot(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.RemoveFavorite(r.Context(), user.ID, lotID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "removed from favorites"})
}

// История просмотров

func (h *Handler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := h.Ledger.History(r.Context(), user.ID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.ViewRecord{"history": history})
}

func (h *Handler) GetViewedHandler(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ids, err := h.Ledger.ViewedLotIDs(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"lot_ids": ids})
}

func (h *Handler) RecordViewHandler(w http.ResponseWriter, r *http.Request) {
	user, lotID, ok := h.userAndLot(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.RecordView(r.Context(), user.ID, lotID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "view recorded"})
}

// Заметки

type noteRequest struct {
	Text string `json:"text" validate:"required"`
}

func (h *Handler) GetNotesHandler(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	notes, err := h.Ledger.ListNotes(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.Note{"notes": notes})
}

// GetNoteHandler отдаёт {"note": null}, если заметки нет
func (h *Handler) GetNoteHandler(w http.ResponseWriter, r *http.Request) {
	user, lotID, ok := h.userAndLot(w, r)
	if !ok {
		return
	}
	note, err := h.Ledger.GetNote(r.Context(), user.ID, lotID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.Note{"note": note})
}

func (h *Handler) PutNoteHandler(w http.ResponseWriter, r *http.Request) {
	user, lotID, ok := h.userAndLot(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	note, err := h.Ledger.UpsertNote(r.Context(), user.ID, lotID, req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.Note{"note": note})
}

func (h *Handler) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	user, lotID, ok := h.userAndLot(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.DeleteNote(r.Context(), user.ID, lotID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "note deleted"})
}

// Выигранные тендеры

type markWonRequest struct {
	ActualProfit   decimal.NullDecimal `json:"actual_profit"`
	ExpectedProfit decimal.NullDecimal `json:"expected_profit"`
	Notes          string              `json:"notes" validate:"max=2000"`
}

type updateWonRequest struct {
	ActualProfit decimal.NullDecimal `json:"actual_profit"`
	Notes        *string             `json:"notes" validate:"omitempty,max=2000"`
}

func (h *Handler) GetWonListHandler(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	won, err := h.Ledger.ListWon(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.WonTender{"won": won})
}

func (h *Handler) GetWonHandler(w http.ResponseWriter, r *http.Request) {
	user, lotID, ok := h.userAndLot(w, r)
	if !ok {
		return
	}
	won, err := h.Ledger.GetWon(r.Context(), user.ID, lotID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, won)
}

func (h *Handler) MarkWonHandler(w http.ResponseWriter, r *http.Request) {
	user, lotID, ok := h.userAndLot(w, r)
	if !ok {
		return
	}
	var req markWonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	won, err := h.Ledger.MarkWon(r.Context(), user.ID, lotID, ledger.WonInput{
		ActualProfit:   req.ActualProfit,
		ExpectedProfit: req.ExpectedProfit,
		Notes:          req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, won)
}

func (h *Handler) UpdateWonHandler(w http.ResponseWriter, r *http.Request) {
	user, lotID, ok := h.userAndLot(w, r)
	if !ok {
		return
	}
	var req updateWonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	won, err := h.Ledger.UpdateWon(r.Context(), user.ID, lotID, req.ActualProfit, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, won)
}

func (h *Handler) DeleteWonHandler(w http.ResponseWriter, r *http.Request) {
	user, lotID, ok := h.userAndLot(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.DeleteWon(r.Context(), user.ID, lotID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "won tender deleted"})
}

// GetUserStatsHandler - сводка активности текущего пользователя
func (h *Handler) GetUserStatsHandler(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.Ledger.UserStats(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
