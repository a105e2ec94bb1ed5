// Package scoring считает прогноз прибыльности лота. Функции чистые, без ввода-вывода.
package scoring

import (
	"tenderfinder/models"

	"github.com/shopspring/decimal"
)

var (
	// DefaultBestPriceFactor - доля тендерной цены, по которой предполагается закупка
	DefaultBestPriceFactor = decimal.RequireFromString("0.4")
	// DefaultDeliveryPercent - доставка в процентах от себестоимости
	DefaultDeliveryPercent = decimal.NewFromInt(15)

	hundred = decimal.NewFromInt(100)
)

// Config - параметры модели закупки
type Config struct {
	BestPriceFactor decimal.Decimal
	DeliveryPercent decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		BestPriceFactor: DefaultBestPriceFactor,
		DeliveryPercent: DefaultDeliveryPercent,
	}
}

// Report - прогноз по лоту. Движок возвращает полную точность, округление делает Round.
type Report struct {
	BestPrice     decimal.Decimal `json:"best_price"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	DeliveryCost  decimal.Decimal `json:"delivery_cost"`
	TotalExpense  decimal.Decimal `json:"total_expense"`
	Revenue       decimal.Decimal `json:"revenue"`
	Profit        decimal.Decimal `json:"profit"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	ProfitMargin  decimal.Decimal `json:"profit_margin"`
	ROI           decimal.Decimal `json:"roi"`
}

// Round округляет все поля до 2 знаков. Вызывается только на границе (ответ, экспорт).
func (r Report) Round() Report {
	return Report{
		BestPrice:     r.BestPrice.Round(2),
		TotalCost:     r.TotalCost.Round(2),
		DeliveryCost:  r.DeliveryCost.Round(2),
		TotalExpense:  r.TotalExpense.Round(2),
		Revenue:       r.Revenue.Round(2),
		Profit:        r.Profit.Round(2),
		MarginPercent: r.MarginPercent.Round(2),
		ProfitMargin:  r.ProfitMargin.Round(2),
		ROI:           r.ROI.Round(2),
	}
}

// ScoredLot - лот вместе с прогнозом, так его видит клиент
type ScoredLot struct {
	models.Lot
	Stats Report `json:"stats"`
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.BestPriceFactor.IsZero() {
		cfg.BestPriceFactor = DefaultBestPriceFactor
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) DeliveryPercent() decimal.Decimal {
	return e.cfg.DeliveryPercent
}

// Score считает прогноз с процентом доставки из конфигурации
func (e *Engine) Score(lot models.Lot) Report {
	return e.ScoreWith(lot, e.cfg.DeliveryPercent)
}

// ScoreWith считает прогноз с явно заданным процентом доставки (15 = 15%)
func (e *Engine) ScoreWith(lot models.Lot, deliveryPercent decimal.Decimal) Report {
	price := lot.TenderPrice
	qty := decimal.NewFromInt(lot.Quantity)

	var r Report
	r.BestPrice = price.Mul(e.cfg.BestPriceFactor)
	r.TotalCost = r.BestPrice.Mul(qty)
	r.DeliveryCost = r.TotalCost.Mul(deliveryPercent).Div(hundred)
	r.TotalExpense = r.TotalCost.Add(r.DeliveryCost)
	r.Revenue = price.Mul(qty)
	r.Profit = r.Revenue.Sub(r.TotalExpense)

	if r.BestPrice.IsPositive() {
		r.MarginPercent = price.Sub(r.BestPrice).Div(r.BestPrice).Mul(hundred)
	}
	if r.Revenue.IsPositive() {
		r.ProfitMargin = r.Profit.Div(r.Revenue).Mul(hundred)
	}
	if r.TotalExpense.IsPositive() {
		r.ROI = r.Profit.Div(r.TotalExpense).Mul(hundred)
	}
	return r
}

// Scored оборачивает лот округлённым прогнозом
func (e *Engine) Scored(lot models.Lot, deliveryPercent decimal.Decimal) ScoredLot {
	return ScoredLot{Lot: lot, Stats: e.ScoreWith(lot, deliveryPercent).Round()}
}
