package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы лота. Перечисление открытое: пайплайн загрузки может писать и другие значения.
const (
	LotStatusNew      = "new"
	LotStatusSearched = "searched"
	LotStatusMatched  = "matched"
)

// Сущность Лота (строка тендера из внешнего каталога)
type Lot struct {
	ID               int64           `db:"id" json:"id"`
	AnnounceID       *string         `db:"announce_id" json:"announce_id"`
	LotNumber        string          `db:"lot_number" json:"lot_number"`
	OriginalName     *string         `db:"original_name" json:"original_name"`
	SimplifiedName   *string         `db:"simplified_name" json:"simplified_name"`
	ChineseName      *string         `db:"chinese_name" json:"chinese_name"`
	Category         *string         `db:"category" json:"category"`
	TenderPrice      decimal.Decimal `db:"tender_price" json:"tender_price"`
	Quantity         int64           `db:"quantity" json:"quantity"`
	Unit             string          `db:"unit" json:"unit"`
	Customer         string          `db:"customer" json:"customer"`
	IsService        bool            `db:"is_service" json:"is_service"`
	SuitableForChina bool            `db:"suitable_for_china" json:"suitable_for_china"`
	Status           string          `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// DisplayName возвращает первое непустое название лота.
func (l Lot) DisplayName() string {
	for _, name := range []*string{l.SimplifiedName, l.OriginalName, l.ChineseName} {
		if name != nil && *name != "" {
			return *name
		}
	}
	return l.LotNumber
}

// Сущность Предложения поставщика, найденного для лота
type SourceOffer struct {
	ID              int64           `db:"id" json:"id"`
	LotID           int64           `db:"lot_id" json:"lot_id"`
	Title           string          `db:"title" json:"title"`
	URL             string          `db:"url" json:"url"`
	Price           decimal.Decimal `db:"price" json:"price"`
	Marketplace     string          `db:"marketplace" json:"marketplace"`
	DiscoveryMethod string          `db:"discovery_method" json:"discovery_method"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// LotFilter - фильтр постраничного списка лотов
type LotFilter struct {
	Category   string
	SearchText string
	Status     string
}

// LotQuery - параметры расширенного поиска
type LotQuery struct {
	Text     string           `json:"query"`
	Category string           `json:"category"`
	MinPrice *decimal.Decimal `json:"min_price"`
	MaxPrice *decimal.Decimal `json:"max_price"`
	SortBy   string           `json:"sort_by" validate:"omitempty,oneof=date price priceDesc margin profit"`
	Limit    int              `json:"limit" validate:"gte=0,lte=1000"`
}

// CategoryCount - количество лотов в категории
type CategoryCount struct {
	Category string `db:"category" json:"category"`
	Count    int    `db:"count" json:"count"`
}

// CatalogSummary - агрегаты каталога, считаемые в БД
type CatalogSummary struct {
	TotalLots     int             `json:"total_lots"`
	TotalSum      decimal.Decimal `json:"total_sum"`
	Statuses      map[string]int  `json:"statuses"`
	Categories    []CategoryCount `json:"categories"`
	ChinaSuitable int             `json:"china_suitable"`
	Services      int             `json:"services"`
	SearchedLots  int             `json:"searched_lots"`
	TotalProducts int             `json:"total_products"`
	NewToday      int             `json:"new_today"`
}

// Сущность Пользователя
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Избранный лот
type Favorite struct {
	UserID  int64     `db:"user_id" json:"user_id"`
	LotID   int64     `db:"lot_id" json:"lot_id"`
	AddedAt time.Time `db:"added_at" json:"added_at"`
}

// Запись истории просмотров (не уникальна)
type ViewRecord struct {
	ID       int64     `db:"id" json:"id"`
	UserID   int64     `db:"user_id" json:"user_id"`
	LotID    int64     `db:"lot_id" json:"lot_id"`
	ViewedAt time.Time `db:"viewed_at" json:"viewed_at"`
}

// Заметка пользователя к лоту
type Note struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	LotID     int64     `db:"lot_id" json:"lot_id"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Выигранный тендер
type WonTender struct {
	UserID         int64               `db:"user_id" json:"user_id"`
	LotID          int64               `db:"lot_id" json:"lot_id"`
	ActualProfit   decimal.NullDecimal `db:"actual_profit" json:"actual_profit"`
	ExpectedProfit decimal.NullDecimal `db:"expected_profit" json:"expected_profit"`
	Notes          string              `db:"notes" json:"notes"`
	WonAt          time.Time           `db:"won_at" json:"won_at"`
}

// UserCounters - сырые счётчики пользователя из леджера
type UserCounters struct {
	ViewedCount         int             `db:"viewed_count"`
	FavoritesCount      int             `db:"favorites_count"`
	NotesCount          int             `db:"notes_count"`
	WonCount            int             `db:"won_count"`
	TotalActualProfit   decimal.Decimal `db:"total_actual_profit"`
	TotalExpectedProfit decimal.Decimal `db:"total_expected_profit"`
}
