// Package search реализует поиск лотов по бюджету и по доходности поверх всего каталога.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"tenderfinder/internal/apperror"
	"tenderfinder/internal/scoring"
	"tenderfinder/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultResultLimit = 20

var hundred = decimal.NewFromInt(100)

// Catalog - то, что поиску нужно от хранилища каталога
type Catalog interface {
	ScanLots(ctx context.Context, fn func(models.Lot) error) error
	SearchLots(ctx context.Context, q models.LotQuery) ([]models.Lot, error)
	Summary(ctx context.Context, since time.Time) (*models.CatalogSummary, error)
}

type Config struct {
	// ResultLimit - сколько лучших лотов возвращать
	ResultLimit int
	// WindowPercent - ширина окна вокруг цели в процентах (20 = ±20%)
	WindowPercent decimal.Decimal
	// ScanTimeout ограничивает полный проход по каталогу; 0 - без ограничения
	ScanTimeout time.Duration
}

type Service struct {
	catalog Catalog
	engine  *scoring.Engine
	cfg     Config
	log     *zap.Logger
}

func NewService(catalog Catalog, engine *scoring.Engine, cfg Config, log *zap.Logger) *Service {
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = DefaultResultLimit
	}
	if cfg.WindowPercent.IsZero() {
		cfg.WindowPercent = decimal.NewFromInt(20)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{catalog: catalog, engine: engine, cfg: cfg, log: log}
}

// Window - параметры выполненного поиска, возвращаются клиенту вместе с результатом
type Window struct {
	Metric          string          `json:"metric"`
	Target          decimal.Decimal `json:"target"`
	Min             decimal.Decimal `json:"min"`
	Max             decimal.Decimal `json:"max"`
	DeliveryPercent decimal.Decimal `json:"delivery_percent"`
}

// Results - ранжированная выборка: Total считается до усечения
type Results struct {
	Query   Window              `json:"query"`
	Total   int                 `json:"total"`
	Results []scoring.ScoredLot `json:"results"`
}

// Метрики, по которым строится окно
const (
	MetricTotalExpense  = "total_expense"
	MetricProfit        = "profit"
	MetricMarginPercent = "margin_percent"
	MetricProfitMargin  = "profit_margin"
)

// SearchByBudget ищет лоты, у которых total_expense попадает в окно вокруг бюджета
func (s *Service) SearchByBudget(ctx context.Context, budget decimal.Decimal, delivery *decimal.Decimal) (*Results, error) {
	if !budget.IsPositive() {
		return nil, apperror.Validation("budget must be positive")
	}
	return s.window(ctx, MetricTotalExpense, budget, delivery, false, func(r scoring.Report) decimal.Decimal {
		return r.TotalExpense
	})
}

// SearchByMargin ищет по абсолютной прибыли (profit) в окне вокруг targetMargin.
// Для поиска по наценке есть SearchByMarginPercent.
func (s *Service) SearchByMargin(ctx context.Context, targetMargin decimal.Decimal, delivery *decimal.Decimal) (*Results, error) {
	if !targetMargin.IsPositive() {
		return nil, apperror.Validation("target_margin must be positive")
	}
	return s.window(ctx, MetricProfit, targetMargin, delivery, false, func(r scoring.Report) decimal.Decimal {
		return r.Profit
	})
}

// SearchByMarginPercent ищет по наценке над предполагаемой ценой закупки (margin_percent)
func (s *Service) SearchByMarginPercent(ctx context.Context, target decimal.Decimal, delivery *decimal.Decimal) (*Results, error) {
	if !target.IsPositive() {
		return nil, apperror.Validation("target_margin must be positive")
	}
	return s.window(ctx, MetricMarginPercent, target, delivery, false, func(r scoring.Report) decimal.Decimal {
		return r.MarginPercent
	})
}

// SearchByProfitMargin ищет товары (не услуги), у которых profit_margin в [min, max]
func (s *Service) SearchByProfitMargin(ctx context.Context, min, max decimal.Decimal, delivery *decimal.Decimal) (*Results, error) {
	if min.GreaterThan(max) {
		return nil, apperror.Validation("min_margin must not exceed max_margin")
	}
	deliveryPercent, err := s.delivery(delivery)
	if err != nil {
		return nil, err
	}
	w := Window{Metric: MetricProfitMargin, Min: min, Max: max, DeliveryPercent: deliveryPercent}
	return s.scan(ctx, w, true, func(r scoring.Report) decimal.Decimal { return r.ProfitMargin })
}

func (s *Service) window(ctx context.Context, metric string, target decimal.Decimal, delivery *decimal.Decimal,
	goodsOnly bool, value func(scoring.Report) decimal.Decimal) (*Results, error) {
	deliveryPercent, err := s.delivery(delivery)
	if err != nil {
		return nil, err
	}
	w := Window{
		Metric:          metric,
		Target:          target,
		Min:             target.Mul(hundred.Sub(s.cfg.WindowPercent)).Div(hundred),
		Max:             target.Mul(hundred.Add(s.cfg.WindowPercent)).Div(hundred),
		DeliveryPercent: deliveryPercent,
	}
	return s.scan(ctx, w, goodsOnly, value)
}

func (s *Service) delivery(delivery *decimal.Decimal) (decimal.Decimal, error) {
	if delivery == nil {
		return s.engine.DeliveryPercent(), nil
	}
	if delivery.IsNegative() {
		return decimal.Zero, apperror.Validation("delivery_percent must not be negative")
	}
	return *delivery, nil
}

// scan проходит весь каталог потоком и держит в памяти только лучшие ResultLimit лотов.
// Границы окна включаются, сравнение идёт по неокруглённым значениям.
func (s *Service) scan(ctx context.Context, w Window, goodsOnly bool, value func(scoring.Report) decimal.Decimal) (*Results, error) {
	scanCtx := ctx
	if s.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.cfg.ScanTimeout)
		defer cancel()
	}

	start := time.Now()
	top := newTopK(s.cfg.ResultLimit)
	scanned := 0
	err := s.catalog.ScanLots(scanCtx, func(lot models.Lot) error {
		scanned++
		if goodsOnly && lot.IsService {
			return nil
		}
		report := s.engine.ScoreWith(lot, w.DeliveryPercent)
		v := value(report)
		if v.LessThan(w.Min) || v.GreaterThan(w.Max) {
			return nil
		}
		top.add(candidate{lot: lot, report: report})
		return nil
	})
	if err != nil {
		return nil, s.scanError(ctx, err)
	}

	res := &Results{Query: w, Total: top.total, Results: make([]scoring.ScoredLot, 0, len(top.items))}
	for _, c := range top.sorted() {
		res.Results = append(res.Results, scoring.ScoredLot{Lot: c.lot, Stats: c.report.Round()})
	}

	s.log.Debug("catalog search",
		zap.String("metric", w.Metric),
		zap.String("min", w.Min.String()),
		zap.String("max", w.Max.String()),
		zap.Int("scanned", scanned),
		zap.Int("matched", res.Total),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

// scanError: собственный таймаут поиска - временная ошибка хранилища, отмена клиентом - как есть
func (s *Service) scanError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		s.log.Warn("catalog scan timed out", zap.Duration("timeout", s.cfg.ScanTimeout))
		return apperror.StoreUnavailable(fmt.Errorf("catalog scan timed out: %w", err))
	}
	return err
}

// Advanced - расширенный поиск. Сортировки margin и profit считаются движком после выборки.
func (s *Service) Advanced(ctx context.Context, q models.LotQuery) (*Results, error) {
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return nil, apperror.Validation("min_price must not exceed max_price")
	}
	lots, err := s.catalog.SearchLots(ctx, q)
	if err != nil {
		return nil, err
	}

	delivery := s.engine.DeliveryPercent()
	type scored struct {
		lot    models.Lot
		report scoring.Report
	}
	items := make([]scored, 0, len(lots))
	for _, lot := range lots {
		items = append(items, scored{lot: lot, report: s.engine.ScoreWith(lot, delivery)})
	}

	switch q.SortBy {
	case "margin":
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].report.MarginPercent.GreaterThan(items[j].report.MarginPercent)
		})
	case "profit":
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].report.Profit.GreaterThan(items[j].report.Profit)
		})
	}

	res := &Results{
		Query:   Window{Metric: q.SortBy, DeliveryPercent: delivery},
		Total:   len(items),
		Results: make([]scoring.ScoredLot, 0, len(items)),
	}
	for _, it := range items {
		res.Results = append(res.Results, scoring.ScoredLot{Lot: it.lot, Stats: it.report.Round()})
	}
	return res, nil
}

// Overview - агрегаты каталога для /stats
type Overview struct {
	*models.CatalogSummary
	AvgMargin decimal.Decimal `json:"avg_margin"`
	HotDeals  int             `json:"hot_deals"`
}

// Overview дополняет агрегаты БД средней наценкой и числом "горячих" лотов (наценка > 100%)
func (s *Service) Overview(ctx context.Context, now time.Time) (*Overview, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).UTC()
	summary, err := s.catalog.Summary(ctx, dayStart)
	if err != nil {
		return nil, err
	}

	scanCtx := ctx
	if s.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, s.cfg.ScanTimeout)
		defer cancel()
	}

	sum := decimal.Zero
	count := 0
	hot := 0
	err = s.catalog.ScanLots(scanCtx, func(lot models.Lot) error {
		margin := s.engine.Score(lot).MarginPercent
		sum = sum.Add(margin)
		count++
		if margin.GreaterThan(hundred) {
			hot++
		}
		return nil
	})
	if err != nil {
		return nil, s.scanError(ctx, err)
	}

	o := &Overview{CatalogSummary: summary, AvgMargin: decimal.Zero, HotDeals: hot}
	if count > 0 {
		o.AvgMargin = sum.Div(decimal.NewFromInt(int64(count))).Round(2)
	}
	summary.TotalSum = summary.TotalSum.Round(2)
	return o, nil
}
