// Package ledger - пользовательские записи по лотам поверх каталога:
// избранное, история просмотров, заметки и выигранные тендеры.
package ledger

import (
	"context"
	"strings"
	"time"

	"tenderfinder/internal/apperror"
	"tenderfinder/internal/scoring"
	"tenderfinder/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

var hundred = decimal.NewFromInt(100)

// Store - хранилище леджера (db.Ledger)
type Store interface {
	AddFavorite(ctx context.Context, userID, lotID int64, at time.Time) error
	RemoveFavorite(ctx context.Context, userID, lotID int64) error
	IsFavorite(ctx context.Context, userID, lotID int64) (bool, error)
	ListFavorites(ctx context.Context, userID int64) ([]models.Favorite, error)

	RecordView(ctx context.Context, userID, lotID int64, at time.Time) error
	ListViewedLotIDs(ctx context.Context, userID int64) ([]int64, error)
	ListViews(ctx context.Context, userID int64, limit int) ([]models.ViewRecord, error)

	UpsertNote(ctx context.Context, userID, lotID int64, text string, at time.Time) error
	GetNote(ctx context.Context, userID, lotID int64) (*models.Note, error)
	ListNotes(ctx context.Context, userID int64) ([]models.Note, error)
	DeleteNote(ctx context.Context, userID, lotID int64) error

	CreateWon(ctx context.Context, w *models.WonTender) error
	GetWon(ctx context.Context, userID, lotID int64) (*models.WonTender, error)
	ListWon(ctx context.Context, userID int64) ([]models.WonTender, error)
	UpdateWon(ctx context.Context, userID, lotID int64, actualProfit decimal.NullDecimal, notes *string) error
	DeleteWon(ctx context.Context, userID, lotID int64) error

	Counters(ctx context.Context, userID int64) (*models.UserCounters, error)
}

// LotSource - чтение лотов из каталога, который может жить в другой БД
type LotSource interface {
	GetLot(ctx context.Context, id int64) (*models.Lot, error)
	GetLotsByIDs(ctx context.Context, ids []int64) ([]models.Lot, error)
}

type Service struct {
	store  Store
	lots   LotSource
	engine *scoring.Engine
	log    *zap.Logger
	now    func() time.Time
}

func NewService(store Store, lots LotSource, engine *scoring.Engine, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:  store,
		lots:   lots,
		engine: engine,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// requireLot проверяет, что лот есть в каталоге
func (s *Service) requireLot(ctx context.Context, lotID int64) (*models.Lot, error) {
	if lotID <= 0 {
		return nil, apperror.Validation("invalid lot id %d", lotID)
	}
	return s.lots.GetLot(ctx, lotID)
}

// Избранное

func (s *Service) AddFavorite(ctx context.Context, userID, lotID int64) error {
	if _, err := s.requireLot(ctx, lotID); err != nil {
		return err
	}
	if err := s.store.AddFavorite(ctx, userID, lotID, s.now()); err != nil {
		return err
	}
	s.log.Debug("favorite added", zap.Int64("user_id", userID), zap.Int64("lot_id", lotID))
	return nil
}

// RemoveFavorite идемпотентен
func (s *Service) RemoveFavorite(ctx context.Context, userID, lotID int64) error {
	return s.store.RemoveFavorite(ctx, userID, lotID)
}

func (s *Service) IsFavorite(ctx context.Context, userID, lotID int64) (bool, error) {
	return s.store.IsFavorite(ctx, userID, lotID)
}

func (s *Service) ListFavorites(ctx context.Context, userID int64) ([]models.Favorite, error) {
	return s.store.ListFavorites(ctx, userID)
}

// FavoriteLot - избранный лот с прогнозом
type FavoriteLot struct {
	scoring.ScoredLot
	AddedAt time.Time `json:"added_at"`
}

// FavoritesSummary - итоги по избранному
type FavoritesSummary struct {
	Count        int             `json:"count"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	AvgROI       decimal.Decimal `json:"avg_roi"`
	AvgMargin    decimal.Decimal `json:"avg_margin"`
}

type FavoritesReport struct {
	Favorites []FavoriteLot    `json:"favorites"`
	Summary   FavoritesSummary `json:"summary"`
}

// FavoritesReport собирает избранные лоты (новые сверху) с прогнозами и итогами.
// Лоты, которых уже нет в каталоге, пропускаются.
func (s *Service) FavoritesReport(ctx context.Context, userID int64, delivery *decimal.Decimal) (*FavoritesReport, error) {
	deliveryPercent := s.engine.DeliveryPercent()
	if delivery != nil {
		if delivery.IsNegative() {
			return nil, apperror.Validation("delivery_percent must not be negative")
		}
		deliveryPercent = *delivery
	}

	favorites, err := s.store.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(favorites))
	for _, f := range favorites {
		ids = append(ids, f.LotID)
	}
	lots, err := s.lots.GetLotsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Lot, len(lots))
	for _, l := range lots {
		byID[l.ID] = l
	}

	report := &FavoritesReport{Favorites: make([]FavoriteLot, 0, len(favorites))}
	totalExpense, totalProfit, sumROI, sumMargin := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, f := range favorites {
		lot, ok := byID[f.LotID]
		if !ok {
			continue
		}
		r := s.engine.ScoreWith(lot, deliveryPercent)
		totalExpense = totalExpense.Add(r.TotalExpense)
		totalProfit = totalProfit.Add(r.Profit)
		sumROI = sumROI.Add(r.ROI)
		sumMargin = sumMargin.Add(r.MarginPercent)
		report.Favorites = append(report.Favorites, FavoriteLot{
			ScoredLot: scoring.ScoredLot{Lot: lot, Stats: r.Round()},
			AddedAt:   f.AddedAt,
		})
	}

	n := len(report.Favorites)
	report.Summary = FavoritesSummary{
		Count:        n,
		TotalExpense: totalExpense.Round(2),
		TotalProfit:  totalProfit.Round(2),
		AvgROI:       decimal.Zero,
		AvgMargin:    decimal.Zero,
	}
	if n > 0 {
		count := decimal.NewFromInt(int64(n))
		report.Summary.AvgROI = sumROI.Div(count).Round(2)
		report.Summary.AvgMargin = sumMargin.Div(count).Round(2)
	}
	return report, nil
}

// История просмотров

// RecordView всегда добавляет запись, повторы не схлопываются
func (s *Service) RecordView(ctx context.Context, userID, lotID int64) error {
	if _, err := s.requireLot(ctx, lotID); err != nil {
		return err
	}
	return s.store.RecordView(ctx, userID, lotID, s.now())
}

// RecordViewOf пишет просмотр уже загруженного лота
func (s *Service) RecordViewOf(ctx context.Context, userID int64, lot *models.Lot) error {
	return s.store.RecordView(ctx, userID, lot.ID, s.now())
}

func (s *Service) ViewedLotIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.store.ListViewedLotIDs(ctx, userID)
}

func (s *Service) History(ctx context.Context, userID int64, limit int) ([]models.ViewRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.store.ListViews(ctx, userID, limit)
}

// Заметки

// UpsertNote создаёт или обновляет заметку. Пустой (после обрезки пробелов) текст - ошибка валидации.
func (s *Service) UpsertNote(ctx context.Context, userID, lotID int64, text string) (*models.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.Validation("note text must not be empty")
	}
	if _, err := s.requireLot(ctx, lotID); err != nil {
		return nil, err
	}
	if err := s.store.UpsertNote(ctx, userID, lotID, text, s.now()); err != nil {
		return nil, err
	}
	return s.store.GetNote(ctx, userID, lotID)
}

// GetNote возвращает nil без ошибки, если заметки нет
func (s *Service) GetNote(ctx context.Context, userID, lotID int64) (*models.Note, error) {
	note, err := s.store.GetNote(ctx, userID, lotID)
	if apperror.KindOf(err) == apperror.KindNotFound {
		return nil, nil
	}
	return note, err
}

func (s *Service) ListNotes(ctx context.Context, userID int64) ([]models.Note, error) {
	return s.store.ListNotes(ctx, userID)
}

// DeleteNote идемпотентен
func (s *Service) DeleteNote(ctx context.Context, userID, lotID int64) error {
	return s.store.DeleteNote(ctx, userID, lotID)
}

// Выигранные тендеры

type WonInput struct {
	ActualProfit   decimal.NullDecimal
	ExpectedProfit decimal.NullDecimal
	Notes          string
}

// MarkWon отмечает лот выигранным. Если ожидаемая прибыль не передана, берётся прогноз движка.
func (s *Service) MarkWon(ctx context.Context, userID, lotID int64, in WonInput) (*models.WonTender, error) {
	lot, err := s.requireLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	expected := in.ExpectedProfit
	if !expected.Valid {
		expected = decimal.NewNullDecimal(s.engine.Score(*lot).Profit.Round(2))
	}
	won := &models.WonTender{
		UserID:         userID,
		LotID:          lotID,
		ActualProfit:   in.ActualProfit,
		ExpectedProfit: expected,
		Notes:          strings.TrimSpace(in.Notes),
		WonAt:          s.now(),
	}
	if err := s.store.CreateWon(ctx, won); err != nil {
		return nil, err
	}
	s.log.Info("tender marked as won", zap.Int64("user_id", userID), zap.Int64("lot_id", lotID))
	return won, nil
}

// UpdateWon меняет фактическую прибыль и/или заметки; записи нет - not_found
func (s *Service) UpdateWon(ctx context.Context, userID, lotID int64, actualProfit decimal.NullDecimal, notes *string) (*models.WonTender, error) {
	if notes != nil {
		trimmed := strings.TrimSpace(*notes)
		notes = &trimmed
	}
	if err := s.store.UpdateWon(ctx, userID, lotID, actualProfit, notes); err != nil {
		return nil, err
	}
	return s.store.GetWon(ctx, userID, lotID)
}

func (s *Service) GetWon(ctx context.Context, userID, lotID int64) (*models.WonTender, error) {
	return s.store.GetWon(ctx, userID, lotID)
}

func (s *Service) ListWon(ctx context.Context, userID int64) ([]models.WonTender, error) {
	return s.store.ListWon(ctx, userID)
}

// DeleteWon идемпотентен
func (s *Service) DeleteWon(ctx context.Context, userID, lotID int64) error {
	return s.store.DeleteWon(ctx, userID, lotID)
}

// UserStats - сводка активности пользователя
type UserStats struct {
	ViewedCount         int             `json:"viewed_count"`
	FavoritesCount      int             `json:"favorites_count"`
	NotesCount          int             `json:"notes_count"`
	WonCount            int             `json:"won_count"`
	TotalActualProfit   decimal.Decimal `json:"total_actual_profit"`
	TotalExpectedProfit decimal.Decimal `json:"total_expected_profit"`
	AvgROI              decimal.Decimal `json:"avg_roi"`
	WinRate             decimal.Decimal `json:"win_rate"`
}

// UserStats: avg_roi = (факт/ожидание - 1) * 100, win_rate = выигранные / просмотренные лоты * 100
func (s *Service) UserStats(ctx context.Context, userID int64) (*UserStats, error) {
	c, err := s.store.Counters(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &UserStats{
		ViewedCount:         c.ViewedCount,
		FavoritesCount:      c.FavoritesCount,
		NotesCount:          c.NotesCount,
		WonCount:            c.WonCount,
		TotalActualProfit:   c.TotalActualProfit.Round(2),
		TotalExpectedProfit: c.TotalExpectedProfit.Round(2),
		AvgROI:              decimal.Zero,
		WinRate:             decimal.Zero,
	}
	if c.TotalExpectedProfit.IsPositive() {
		stats.AvgROI = c.TotalActualProfit.Div(c.TotalExpectedProfit).Sub(decimal.NewFromInt(1)).Mul(hundred).Round(2)
	}
	if c.ViewedCount > 0 {
		stats.WinRate = decimal.NewFromInt(int64(c.WonCount)).Div(decimal.NewFromInt(int64(c.ViewedCount))).Mul(hundred).Round(2)
	}
	return stats, nil
}
