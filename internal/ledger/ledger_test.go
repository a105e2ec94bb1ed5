package ledger_test

import (
	"context"
	"path/filepath"
	"testing"

	"tenderfinder/db"
	"tenderfinder/db/migrations"
	"tenderfinder/internal/apperror"
	"tenderfinder/internal/ledger"
	"tenderfinder/internal/scoring"
	"tenderfinder/models"

	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     *ledger.Service
	catalog *db.Catalog
	users   *db.Users
	user    *models.User
	lot     models.Lot
}

// setup поднимает каталог и леджер в разных файлах sqlite, как в раздельном деплое
func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	open := func(name string, set migrations.Set) *db.Conn {
		conn, err := db.Open(ctx, "sqlite", filepath.Join(dir, name))
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		require.NoError(t, migrations.Run(ctx, conn.DB.DB, string(conn.Dialect), goose.NopLogger(), set))
		return conn
	}
	catalogConn := open("catalog.db", migrations.Catalog)
	ledgerConn := open("ledger.db", migrations.Ledger)

	f := &fixture{
		catalog: db.NewCatalog(catalogConn),
		users:   db.NewUsers(ledgerConn),
	}
	engine := scoring.NewEngine(scoring.DefaultConfig())
	f.svc = ledger.NewService(db.NewLedger(ledgerConn), f.catalog, engine, nil)

	f.user = &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, f.users.CreateUser(ctx, f.user))

	f.lot = models.Lot{LotNumber: "L-1", TenderPrice: decimal.NewFromInt(1000), Quantity: 10}
	require.NoError(t, f.catalog.CreateLot(ctx, &f.lot))
	return f
}

func (f *fixture) addLot(t *testing.T, price string, qty int64) models.Lot {
	t.Helper()
	lot := models.Lot{LotNumber: "L-" + price, TenderPrice: decimal.RequireFromString(price), Quantity: qty}
	require.NoError(t, f.catalog.CreateLot(context.Background(), &lot))
	return lot
}

func TestFavoriteTwiceAlreadyExists(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.svc.AddFavorite(ctx, f.user.ID, f.lot.ID))
	err := f.svc.AddFavorite(ctx, f.user.ID, f.lot.ID)
	require.Equal(t, apperror.KindAlreadyExists, apperror.KindOf(err))

	require.NoError(t, f.svc.RemoveFavorite(ctx, f.user.ID, f.lot.ID))
	require.NoError(t, f.svc.RemoveFavorite(ctx, f.user.ID, f.lot.ID))
}

func TestFavoriteUnknownLot(t *testing.T) {
	f := setup(t)

	err := f.svc.AddFavorite(context.Background(), f.user.ID, 9999)
	require.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestFavoritesReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	second := f.addLot(t, "100", 1)

	require.NoError(t, f.svc.AddFavorite(ctx, f.user.ID, f.lot.ID))
	require.NoError(t, f.svc.AddFavorite(ctx, f.user.ID, second.ID))

	report, err := f.svc.FavoritesReport(ctx, f.user.ID, nil)
	require.NoError(t, err)
	require.Len(t, report.Favorites, 2)
	require.Equal(t, 2, report.Summary.Count)
	// 4600 + 46
	require.True(t, report.Summary.TotalExpense.Equal(decimal.RequireFromString("4646")), report.Summary.TotalExpense.String())
	// 5400 + 54
	require.True(t, report.Summary.TotalProfit.Equal(decimal.RequireFromString("5454")))
	require.True(t, report.Summary.AvgROI.Equal(decimal.RequireFromString("117.39")))
	require.True(t, report.Summary.AvgMargin.Equal(decimal.RequireFromString("150")))
}

func TestFavoritesReportEmpty(t *testing.T) {
	f := setup(t)

	report, err := f.svc.FavoritesReport(context.Background(), f.user.ID, nil)
	require.NoError(t, err)
	require.Empty(t, report.Favorites)
	require.True(t, report.Summary.AvgROI.IsZero())
}

func TestNotes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.UpsertNote(ctx, f.user.ID, f.lot.ID, "   ")
	require.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	note, err := f.svc.GetNote(ctx, f.user.ID, f.lot.ID)
	require.NoError(t, err)
	require.Nil(t, note)

	_, err = f.svc.UpsertNote(ctx, f.user.ID, f.lot.ID, "first")
	require.NoError(t, err)
	note, err = f.svc.UpsertNote(ctx, f.user.ID, f.lot.ID, " latest ")
	require.NoError(t, err)
	require.Equal(t, "latest", note.Text)

	got, err := f.svc.GetNote(ctx, f.user.ID, f.lot.ID)
	require.NoError(t, err)
	require.Equal(t, "latest", got.Text)

	require.NoError(t, f.svc.DeleteNote(ctx, f.user.ID, f.lot.ID))
	require.NoError(t, f.svc.DeleteNote(ctx, f.user.ID, f.lot.ID))
}

func TestMarkWonTwice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	won, err := f.svc.MarkWon(ctx, f.user.ID, f.lot.ID, ledger.WonInput{})
	require.NoError(t, err)
	// ожидаемая прибыль по умолчанию - прогноз движка
	require.True(t, won.ExpectedProfit.Decimal.Equal(decimal.NewFromInt(5400)))
	require.False(t, won.ActualProfit.Valid)

	_, err = f.svc.MarkWon(ctx, f.user.ID, f.lot.ID, ledger.WonInput{})
	require.Equal(t, apperror.KindAlreadyExists, apperror.KindOf(err))
}

func TestUpdateWon(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.UpdateWon(ctx, f.user.ID, f.lot.ID, decimal.NewNullDecimal(decimal.NewFromInt(1)), nil)
	require.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = f.svc.MarkWon(ctx, f.user.ID, f.lot.ID, ledger.WonInput{})
	require.NoError(t, err)

	notes := "подписан договор"
	won, err := f.svc.UpdateWon(ctx, f.user.ID, f.lot.ID, decimal.NewNullDecimal(decimal.NewFromInt(5000)), &notes)
	require.NoError(t, err)
	require.True(t, won.ActualProfit.Decimal.Equal(decimal.NewFromInt(5000)))
	require.Equal(t, notes, won.Notes)

	require.NoError(t, f.svc.DeleteWon(ctx, f.user.ID, f.lot.ID))
	_, err = f.svc.GetWon(ctx, f.user.ID, f.lot.ID)
	require.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestUserStats(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	second := f.addLot(t, "100", 1)

	require.NoError(t, f.svc.RecordView(ctx, f.user.ID, f.lot.ID))
	require.NoError(t, f.svc.RecordView(ctx, f.user.ID, f.lot.ID))
	require.NoError(t, f.svc.RecordView(ctx, f.user.ID, second.ID))
	_, err := f.svc.MarkWon(ctx, f.user.ID, f.lot.ID, ledger.WonInput{
		ActualProfit:   decimal.NewNullDecimal(decimal.NewFromInt(5000)),
		ExpectedProfit: decimal.NewNullDecimal(decimal.NewFromInt(5400)),
	})
	require.NoError(t, err)

	stats, err := f.svc.UserStats(ctx, f.user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.ViewedCount)
	require.Equal(t, 1, stats.WonCount)
	require.True(t, stats.AvgROI.Equal(decimal.RequireFromString("-7.41")), stats.AvgROI.String())
	require.True(t, stats.WinRate.Equal(decimal.NewFromInt(50)))

	history, err := f.svc.History(ctx, f.user.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)

	viewed, err := f.svc.ViewedLotIDs(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, viewed, 2)
}

func TestDeletedUserLooksNew(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.svc.AddFavorite(ctx, f.user.ID, f.lot.ID))
	_, err := f.svc.UpsertNote(ctx, f.user.ID, f.lot.ID, "note")
	require.NoError(t, err)
	require.NoError(t, f.users.DeleteUser(ctx, f.user.ID))

	favorites, err := f.svc.ListFavorites(ctx, f.user.ID)
	require.NoError(t, err)
	require.Empty(t, favorites)

	note, err := f.svc.GetNote(ctx, f.user.ID, f.lot.ID)
	require.NoError(t, err)
	require.Nil(t, note)

	stats, err := f.svc.UserStats(ctx, f.user.ID)
	require.NoError(t, err)
	require.Zero(t, stats.FavoritesCount)
	require.True(t, stats.AvgROI.IsZero())
	require.True(t, stats.WinRate.IsZero())
}
