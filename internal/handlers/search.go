package handlers

import (
	"net/http"

	"tenderfinder/models"

	"github.com/shopspring/decimal"
)

type budgetSearchRequest struct {
	Budget          decimal.Decimal  `json:"budget"`
	DeliveryPercent *decimal.Decimal `json:"delivery_percent"`
}

type marginSearchRequest struct {
	TargetMargin    decimal.Decimal  `json:"target_margin"`
	DeliveryPercent *decimal.Decimal `json:"delivery_percent"`
}

type profitMarginSearchRequest struct {
	MinMargin       *decimal.Decimal `json:"min_margin"`
	MaxMargin       *decimal.Decimal `json:"max_margin"`
	DeliveryPercent *decimal.Decimal `json:"delivery_percent"`
}

// SearchByBudgetHandler - лоты, у которых полные затраты в окне вокруг бюджета
func (h *Handler) SearchByBudgetHandler(w http.ResponseWriter, r *http.Request) {
	var req budgetSearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Search.SearchByBudget(r.Context(), req.Budget, req.DeliveryPercent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SearchByMarginHandler - окно по абсолютной прибыли
func (h *Handler) SearchByMarginHandler(w http.ResponseWriter, r *http.Request) {
	var req marginSearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Search.SearchByMargin(r.Context(), req.TargetMargin, req.DeliveryPercent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SearchByMarginPercentHandler - окно по наценке в процентах
func (h *Handler) SearchByMarginPercentHandler(w http.ResponseWriter, r *http.Request) {
	var req marginSearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Search.SearchByMarginPercent(r.Context(), req.TargetMargin, req.DeliveryPercent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SearchByProfitMarginHandler - диапазон доли прибыли в выручке, только товары. По умолчанию [0, 100].
func (h *Handler) SearchByProfitMarginHandler(w http.ResponseWriter, r *http.Request) {
	var req profitMarginSearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	min, max := decimal.Zero, decimal.NewFromInt(100)
	if req.MinMargin != nil {
		min = *req.MinMargin
	}
	if req.MaxMargin != nil {
		max = *req.MaxMargin
	}
	res, err := h.Search.SearchByProfitMargin(r.Context(), min, max, req.DeliveryPercent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AdvancedSearchHandler - текст, категория, диапазон цены и сортировка
func (h *Handler) AdvancedSearchHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LotQuery
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Search.Advanced(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
