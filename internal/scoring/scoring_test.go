package scoring_test

import (
	"testing"

	"tenderfinder/internal/scoring"
	"tenderfinder/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestScoreReferenceLot(t *testing.T) {
	engine := scoring.NewEngine(scoring.DefaultConfig())
	lot := models.Lot{ID: 1, TenderPrice: d("1000"), Quantity: 10}

	r := engine.Score(lot).Round()

	requireDecimal(t, "400", r.BestPrice, "best_price")
	requireDecimal(t, "4000", r.TotalCost, "total_cost")
	requireDecimal(t, "600", r.DeliveryCost, "delivery_cost")
	requireDecimal(t, "4600", r.TotalExpense, "total_expense")
	requireDecimal(t, "10000", r.Revenue, "revenue")
	requireDecimal(t, "5400", r.Profit, "profit")
	requireDecimal(t, "117.39", r.ROI, "roi")
	requireDecimal(t, "150", r.MarginPercent, "margin_percent")
	requireDecimal(t, "54", r.ProfitMargin, "profit_margin")
}

func TestScoreIdentitiesHoldExactly(t *testing.T) {
	engine := scoring.NewEngine(scoring.DefaultConfig())
	lots := []models.Lot{
		{TenderPrice: d("1234.57"), Quantity: 3},
		{TenderPrice: d("0.01"), Quantity: 999},
		{TenderPrice: d("99999.99"), Quantity: 1},
		{TenderPrice: d("17.33"), Quantity: 7},
	}
	for _, lot := range lots {
		r := engine.ScoreWith(lot, d("12.5"))
		require.True(t, r.Revenue.Equal(lot.TenderPrice.Mul(decimal.NewFromInt(lot.Quantity))))
		require.True(t, r.Profit.Equal(r.Revenue.Sub(r.TotalExpense)))
		require.True(t, r.TotalExpense.Equal(r.TotalCost.Add(r.DeliveryCost)))
	}
}

func TestScoreZeroGuards(t *testing.T) {
	engine := scoring.NewEngine(scoring.DefaultConfig())

	r := engine.Score(models.Lot{TenderPrice: decimal.Zero, Quantity: 5})
	require.True(t, r.MarginPercent.IsZero())
	require.True(t, r.ProfitMargin.IsZero())
	require.True(t, r.ROI.IsZero())

	r = engine.Score(models.Lot{TenderPrice: d("100"), Quantity: 0})
	require.True(t, r.MarginPercent.Equal(d("150")))
	require.True(t, r.ROI.IsZero())
	require.True(t, r.ProfitMargin.IsZero())
}

func TestScoreUsesConfiguredFactor(t *testing.T) {
	engine := scoring.NewEngine(scoring.Config{
		BestPriceFactor: d("0.5"),
		DeliveryPercent: decimal.Zero,
	})
	r := engine.Score(models.Lot{TenderPrice: d("200"), Quantity: 2})

	requireDecimal(t, "100", r.BestPrice, "best_price")
	requireDecimal(t, "200", r.TotalExpense, "total_expense")
	requireDecimal(t, "100", r.ROI, "roi")
	requireDecimal(t, "100", r.MarginPercent, "margin_percent")
}

func TestScoredRoundsAtBoundary(t *testing.T) {
	engine := scoring.NewEngine(scoring.DefaultConfig())
	lot := models.Lot{ID: 7, TenderPrice: d("33.333"), Quantity: 3}

	scored := engine.Scored(lot, scoring.DefaultDeliveryPercent)
	require.Equal(t, int64(7), scored.ID)
	require.True(t, scored.Stats.Revenue.Equal(d("100")))
	require.LessOrEqual(t, -scored.Stats.BestPrice.Exponent(), int32(2))
}
