package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"tenderfinder/db"
	"tenderfinder/internal/apperror"
	"tenderfinder/internal/export"
	"tenderfinder/internal/scoring"
	"tenderfinder/models"

	"go.uber.org/zap"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	var params PaginationParams
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	params.Limit = db.DefaultLotsLimit
	params.Offset = 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			params.Limit = min(l, db.MaxLotsLimit)
		}
	}
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

type lotsResponse struct {
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
	Lots   []scoring.ScoredLot `json:"lots"`
}

// GetLotsHandler возвращает страницу лотов с прогнозом и общее количество по фильтру
func (h *Handler) GetLotsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	q := r.URL.Query()
	filter := models.LotFilter{
		Category:   strings.TrimSpace(q.Get("category")),
		SearchText: strings.TrimSpace(q.Get("search")),
		Status:     strings.TrimSpace(q.Get("status")),
	}

	total, lots, err := h.Catalog.ListLots(r.Context(), filter, params.Limit, params.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := lotsResponse{Total: total, Limit: params.Limit, Offset: params.Offset, Lots: h.scoreAll(lots)}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) scoreAll(lots []models.Lot) []scoring.ScoredLot {
	delivery := h.Engine.DeliveryPercent()
	scored := make([]scoring.ScoredLot, 0, len(lots))
	for _, lot := range lots {
		scored = append(scored, h.Engine.Scored(lot, delivery))
	}
	return scored
}

type lotDetailsResponse struct {
	Lot        scoring.ScoredLot    `json:"lot"`
	Offers     []models.SourceOffer `json:"offers"`
	IsFavorite bool                 `json:"is_favorite"`
	Note       *models.Note         `json:"note"`
}

// GetLotHandler - карточка лота: прогноз, предложения поставщиков, избранное и заметка.
// Открытие карточки пишется в историю просмотров.
func (h *Handler) GetLotHandler(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	lotID, err := idParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	lot, err := h.Catalog.GetLot(ctx, lotID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offers, err := h.Catalog.GetOffers(ctx, lotID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	isFavorite, err := h.Ledger.IsFavorite(ctx, user.ID, lotID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	note, err := h.Ledger.GetNote(ctx, user.ID, lotID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Ledger.RecordViewOf(ctx, user.ID, lot); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lotDetailsResponse{
		Lot:        h.Engine.Scored(*lot, h.Engine.DeliveryPercent()),
		Offers:     offers,
		IsFavorite: isFavorite,
		Note:       note,
	})
}

// GetCategoriesHandler - непустые категории по алфавиту
func (h *Handler) GetCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Catalog.DistinctCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": categories})
}

// GetStatsHandler - агрегаты каталога
func (h *Handler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Search.Overview(r.Context(), time.Now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

type exportRequest struct {
	LotIDs []int64 `json:"lot_ids"`
}

// ExportLotsHandler выгружает выбранные лоты в xlsx
func (h *Handler) ExportLotsHandler(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(req.LotIDs) == 0 {
		h.writeError(w, r, apperror.Validation("no lots selected"))
		return
	}
	if len(req.LotIDs) > db.MaxLotsLimit {
		h.writeError(w, r, apperror.Validation("too many lots selected, max %d", db.MaxLotsLimit))
		return
	}

	lots, err := h.Catalog.GetLotsByIDs(r.Context(), req.LotIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeXLSX(w, r, "tenderfinder_lots", func(w http.ResponseWriter) error {
		return export.Lots(w, lots)
	})
}

// writeXLSX пишет файл напрямую в ответ; ошибка после начала записи только логируется
func (h *Handler) writeXLSX(w http.ResponseWriter, r *http.Request, prefix string, write func(w http.ResponseWriter) error) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(prefix, time.Now())+`"`)
	if err := write(w); err != nil {
		h.Log.Error("failed to write xlsx", zap.String("path", r.URL.Path), zap.Error(err))
	}
}
