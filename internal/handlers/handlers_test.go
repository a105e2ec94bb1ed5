package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tenderfinder/db"
	"tenderfinder/internal/apperror"
	"tenderfinder/internal/export"
	"tenderfinder/internal/handlers"
	"tenderfinder/internal/handlers/testutils"
	"tenderfinder/internal/scoring"
	"tenderfinder/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// MockCatalog реализует CatalogStore
type MockCatalog struct {
	lots         []models.Lot
	listErr      error
	ListLotsFunc func(ctx context.Context, f models.LotFilter, limit, offset int) (int, []models.Lot, error)
}

func (m *MockCatalog) ListLots(ctx context.Context, f models.LotFilter, limit, offset int) (int, []models.Lot, error) {
	if m.ListLotsFunc != nil {
		return m.ListLotsFunc(ctx, f, limit, offset)
	}
	if m.listErr != nil {
		return 0, nil, m.listErr
	}
	return len(m.lots), m.lots, nil
}

func (m *MockCatalog) GetLot(ctx context.Context, id int64) (*models.Lot, error) {
	for _, l := range m.lots {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, apperror.NotFound("lot %d not found", id)
}

func (m *MockCatalog) GetLotsByIDs(ctx context.Context, ids []int64) ([]models.Lot, error) {
	return m.lots, nil
}

func (m *MockCatalog) GetOffers(ctx context.Context, lotID int64) ([]models.SourceOffer, error) {
	return []models.SourceOffer{}, nil
}

func (m *MockCatalog) DistinctCategories(ctx context.Context) ([]string, error) {
	return []string{"a", "b"}, nil
}

type failingPinger struct{}

func (failingPinger) PingContext(ctx context.Context) error { return errors.New("connection refused") }

func newMockHandler(catalog handlers.CatalogStore) *handlers.Handler {
	return handlers.NewHandler(catalog, nil, nil, nil, nil, scoring.NewEngine(scoring.DefaultConfig()), nil)
}

func sampleLot() models.Lot {
	name := "Стол"
	return models.Lot{ID: 1, LotNumber: "LOT-1", SimplifiedName: &name, TenderPrice: decimal.NewFromInt(1000), Quantity: 10}
}

func decodeBody(t *testing.T, res *http.Response, dst interface{}) {
	t.Helper()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, dst), string(body))
}

func TestPingHandler(t *testing.T) {
	handler := newMockHandler(&MockCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	w := httptest.NewRecorder()
	handler.PingHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestHealthHandlerDegraded(t *testing.T) {
	handler := newMockHandler(&MockCatalog{})
	handler.Probes["ledger"] = failingPinger{}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	handler.HealthHandler(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), `"ledger":"unavailable"`)
}

func TestGetLotsHandler(t *testing.T) {
	var gotFilter models.LotFilter
	var gotLimit, gotOffset int
	mock := &MockCatalog{
		ListLotsFunc: func(ctx context.Context, f models.LotFilter, limit, offset int) (int, []models.Lot, error) {
			gotFilter, gotLimit, gotOffset = f, limit, offset
			return 7, []models.Lot{sampleLot()}, nil
		},
	}
	handler := newMockHandler(mock)

	req := httptest.NewRequest(http.MethodGet, "/api/lots?limit=5&offset=10&category=office&search=%D1%81%D1%82%D0%BE%D0%BB&status=new", nil)
	w := httptest.NewRecorder()
	handler.GetLotsHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Total int                 `json:"total"`
		Lots  []scoring.ScoredLot `json:"lots"`
	}
	decodeBody(t, res, &body)
	require.Equal(t, 7, body.Total)
	require.Len(t, body.Lots, 1)
	require.True(t, body.Lots[0].Stats.ROI.Equal(decimal.RequireFromString("117.39")))

	require.Equal(t, models.LotFilter{Category: "office", SearchText: "стол", Status: "new"}, gotFilter)
	require.Equal(t, 5, gotLimit)
	require.Equal(t, 10, gotOffset)
}

func TestGetLotsHandlerDefaultsAndBadPagination(t *testing.T) {
	var gotLimit, gotOffset int
	mock := &MockCatalog{
		ListLotsFunc: func(ctx context.Context, f models.LotFilter, limit, offset int) (int, []models.Lot, error) {
			gotLimit, gotOffset = limit, offset
			return 0, nil, nil
		},
	}
	handler := newMockHandler(mock)

	req := httptest.NewRequest(http.MethodGet, "/api/lots?limit=abc&offset=-1", nil)
	w := httptest.NewRecorder()
	handler.GetLotsHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 100, gotLimit)
	require.Equal(t, 0, gotOffset)
	require.Contains(t, w.Body.String(), `"lots":[]`)
}

func TestGetLotsHandlerClampsLimit(t *testing.T) {
	var gotLimit int
	mock := &MockCatalog{
		ListLotsFunc: func(ctx context.Context, f models.LotFilter, limit, offset int) (int, []models.Lot, error) {
			gotLimit = limit
			return 0, nil, nil
		},
	}
	handler := newMockHandler(mock)

	req := httptest.NewRequest(http.MethodGet, "/api/lots?limit=5000", nil)
	w := httptest.NewRecorder()
	handler.GetLotsHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, db.MaxLotsLimit, gotLimit)
	require.Contains(t, w.Body.String(), `"limit":1000`)
}

func TestGetLotsHandlerClientCanceled(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := newMockHandler(&MockCatalog{listErr: fmt.Errorf("list lots: %w", context.Canceled)})
	handler.Log = zap.New(core)

	req := httptest.NewRequest(http.MethodGet, "/api/lots", nil)
	w := httptest.NewRecorder()
	handler.GetLotsHandler(w, req)

	require.Equal(t, apperror.StatusClientClosedRequest, w.Code)
	require.Contains(t, w.Body.String(), `"error":"canceled"`)
	require.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestGetLotsHandlerStoreUnavailable(t *testing.T) {
	handler := newMockHandler(&MockCatalog{listErr: apperror.StoreUnavailable(errors.New("dial tcp: refused"))})

	req := httptest.NewRequest(http.MethodGet, "/api/lots", nil)
	w := httptest.NewRecorder()
	handler.GetLotsHandler(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), `"error":"store_unavailable"`)
	require.NotContains(t, w.Body.String(), "dial tcp")
}

func TestGetLotsHandlerHidesInternalErrors(t *testing.T) {
	handler := newMockHandler(&MockCatalog{listErr: errors.New("syntax error at or near SELECT")})

	req := httptest.NewRequest(http.MethodGet, "/api/lots", nil)
	w := httptest.NewRecorder()
	handler.GetLotsHandler(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "internal server error")
	require.NotContains(t, w.Body.String(), "syntax")
}

func TestGetCategoriesHandler(t *testing.T) {
	handler := newMockHandler(&MockCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	w := httptest.NewRecorder()
	handler.GetCategoriesHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"categories":["a","b"]}`, w.Body.String())
}

func TestGetLotHandlerRequiresUser(t *testing.T) {
	handler := newMockHandler(&MockCatalog{lots: []models.Lot{sampleLot()}})

	req := httptest.NewRequest(http.MethodGet, "/api/lots/1", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "1"})
	w := httptest.NewRecorder()
	handler.GetLotHandler(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetLotHandlerInvalidID(t *testing.T) {
	handler := newMockHandler(&MockCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/lots/abc", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "abc"})
	req = testutils.WithUser(req, &models.User{ID: 1})
	w := httptest.NewRecorder()
	handler.GetLotHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), `"error":"validation"`)
}

func TestGetLotHandlerNotFound(t *testing.T) {
	handler := newMockHandler(&MockCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/lots/99", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"id": "99"})
	req = testutils.WithUser(req, &models.User{ID: 1})
	w := httptest.NewRecorder()
	handler.GetLotHandler(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportLotsHandlerRequiresSelection(t *testing.T) {
	handler := newMockHandler(&MockCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(`{"lot_ids":[]}`))
	w := httptest.NewRecorder()
	handler.ExportLotsHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportLotsHandler(t *testing.T) {
	handler := newMockHandler(&MockCatalog{lots: []models.Lot{sampleLot()}})

	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(`{"lot_ids":[1]}`))
	w := httptest.NewRecorder()
	handler.ExportLotsHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "tenderfinder_lots_")
	require.NotZero(t, w.Body.Len())
}

func TestInvalidJSONBody(t *testing.T) {
	handler := newMockHandler(&MockCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(`{"lot_ids":`))
	w := httptest.NewRecorder()
	handler.ExportLotsHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid JSON format")
}
