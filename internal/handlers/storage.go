package handlers

import (
	"context"
	"time"

	"tenderfinder/internal/auth"
	"tenderfinder/internal/ingest"
	"tenderfinder/internal/ledger"
	"tenderfinder/internal/search"
	"tenderfinder/models"

	"github.com/shopspring/decimal"
)

// CatalogStore - чтение каталога (db.Catalog)
type CatalogStore interface {
	ListLots(ctx context.Context, f models.LotFilter, limit, offset int) (int, []models.Lot, error)
	GetLot(ctx context.Context, id int64) (*models.Lot, error)
	GetLotsByIDs(ctx context.Context, ids []int64) ([]models.Lot, error)
	GetOffers(ctx context.Context, lotID int64) ([]models.SourceOffer, error)
	DistinctCategories(ctx context.Context) ([]string, error)
}

// SearchService - поиск по всему каталогу (search.Service)
type SearchService interface {
	SearchByBudget(ctx context.Context, budget decimal.Decimal, delivery *decimal.Decimal) (*search.Results, error)
	SearchByMargin(ctx context.Context, targetMargin decimal.Decimal, delivery *decimal.Decimal) (*search.Results, error)
	SearchByMarginPercent(ctx context.Context, target decimal.Decimal, delivery *decimal.Decimal) (*search.Results, error)
	SearchByProfitMargin(ctx context.Context, min, max decimal.Decimal, delivery *decimal.Decimal) (*search.Results, error)
	Advanced(ctx context.Context, q models.LotQuery) (*search.Results, error)
	Overview(ctx context.Context, now time.Time) (*search.Overview, error)
}

// LedgerService - пользовательские записи (ledger.Service)
type LedgerService interface {
	AddFavorite(ctx context.Context, userID, lotID int64) error
	RemoveFavorite(ctx context.Context, userID, lotID int64) error
	IsFavorite(ctx context.Context, userID, lotID int64) (bool, error)
	FavoritesReport(ctx context.Context, userID int64, delivery *decimal.Decimal) (*ledger.FavoritesReport, error)

	RecordView(ctx context.Context, userID, lotID int64) error
	RecordViewOf(ctx context.Context, userID int64, lot *models.Lot) error
	ViewedLotIDs(ctx context.Context, userID int64) ([]int64, error)
	History(ctx context.Context, userID int64, limit int) ([]models.ViewRecord, error)

	UpsertNote(ctx context.Context, userID, lotID int64, text string) (*models.Note, error)
	GetNote(ctx context.Context, userID, lotID int64) (*models.Note, error)
	ListNotes(ctx context.Context, userID int64) ([]models.Note, error)
	DeleteNote(ctx context.Context, userID, lotID int64) error

	MarkWon(ctx context.Context, userID, lotID int64, in ledger.WonInput) (*models.WonTender, error)
	UpdateWon(ctx context.Context, userID, lotID int64, actualProfit decimal.NullDecimal, notes *string) (*models.WonTender, error)
	GetWon(ctx context.Context, userID, lotID int64) (*models.WonTender, error)
	ListWon(ctx context.Context, userID int64) ([]models.WonTender, error)
	DeleteWon(ctx context.Context, userID, lotID int64) error

	UserStats(ctx context.Context, userID int64) (*ledger.UserStats, error)
}

// AccountService - учётные записи (auth.Service)
type AccountService interface {
	auth.Authenticator
	Register(ctx context.Context, username, email, password string) (*auth.Session, error)
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ToggleAdmin(ctx context.Context, actor *models.User, userID int64) (bool, error)
	DeleteUser(ctx context.Context, actor *models.User, userID int64) error
}

// BatchReceiver - приём пачек от пайплайна сбора (ingest.Receiver)
type BatchReceiver interface {
	Accept(ctx context.Context, batch ingest.Batch) (*ingest.Receipt, error)
}

// Pinger - проверка доступности хранилища для /health
type Pinger interface {
	PingContext(ctx context.Context) error
}
