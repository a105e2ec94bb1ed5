package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tenderfinder/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const (
	DefaultLotsLimit = 100
	MaxLotsLimit     = 1000
)

var lotColumns = []string{
	"id", "announce_id", "lot_number", "original_name", "simplified_name", "chinese_name",
	"category", "tender_price", "quantity", "unit", "customer", "is_service",
	"suitable_for_china", "status", "created_at",
}

var offerColumns = []string{
	"id", "lot_id", "title", "url", "price", "marketplace", "discovery_method", "created_at",
}

// Catalog - хранилище лотов и найденных предложений. Для API только чтение,
// пишет туда внешний пайплайн загрузки.
type Catalog struct {
	db *Conn
}

func NewCatalog(db *Conn) *Catalog {
	return &Catalog{db: db}
}

// lotFilter строит условие, общее для запроса страницы и запроса количества
func (c *Catalog) lotFilter(f models.LotFilter) sq.And {
	where := sq.And{}
	if f.Category != "" && f.Category != "all" {
		where = append(where, sq.Eq{"category": f.Category})
	}
	if text := strings.TrimSpace(f.SearchText); text != "" {
		pattern := "%" + text + "%"
		where = append(where, sq.Or{
			c.db.likeOp("simplified_name", pattern),
			c.db.likeOp("original_name", pattern),
			c.db.likeOp("chinese_name", pattern),
			c.db.likeOp("lot_number", pattern),
		})
	}
	if f.Status != "" {
		where = append(where, sq.Eq{"status": f.Status})
	}
	return where
}

// ListLots возвращает страницу лотов и общее количество по тому же фильтру.
// Оба запроса выполняются в одной транзакции, чтобы количество не расходилось со страницей.
func (c *Catalog) ListLots(ctx context.Context, f models.LotFilter, limit, offset int) (int, []models.Lot, error) {
	if limit <= 0 {
		limit = DefaultLotsLimit
	}
	if limit > MaxLotsLimit {
		limit = MaxLotsLimit
	}
	if offset < 0 {
		offset = 0
	}
	where := c.lotFilter(f)

	countSQL, countArgs, err := c.db.builder().Select("COUNT(*)").From("lots").Where(where).ToSql()
	if err != nil {
		return 0, nil, err
	}
	pageSQL, pageArgs, err := c.db.builder().Select(lotColumns...).From("lots").Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return 0, nil, err
	}

	var total int
	lots := []models.Lot{}
	err = c.readTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
			return err
		}
		return tx.SelectContext(ctx, &lots, pageSQL, pageArgs...)
	})
	if err != nil {
		return 0, nil, classify(err, "list lots")
	}
	return total, lots, nil
}

func (c *Catalog) GetLot(ctx context.Context, id int64) (*models.Lot, error) {
	query, args, err := c.db.builder().Select(lotColumns...).From("lots").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	lot := &models.Lot{}
	if err := c.db.GetContext(ctx, lot, query, args...); err != nil {
		return nil, classify(err, "lot %d", id)
	}
	return lot, nil
}

// GetLotsByIDs возвращает найденные лоты; отсутствующие id молча пропускаются
func (c *Catalog) GetLotsByIDs(ctx context.Context, ids []int64) ([]models.Lot, error) {
	lots := []models.Lot{}
	if len(ids) == 0 {
		return lots, nil
	}
	query, args, err := c.db.builder().Select(lotColumns...).From("lots").
		Where(sq.Eq{"id": ids}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := c.db.SelectContext(ctx, &lots, query, args...); err != nil {
		return nil, classify(err, "get lots by ids")
	}
	return lots, nil
}

// GetOffers возвращает предложения по лоту, самые дешёвые первыми
func (c *Catalog) GetOffers(ctx context.Context, lotID int64) ([]models.SourceOffer, error) {
	query, args, err := c.db.builder().Select(offerColumns...).From("source_offers").
		Where(sq.Eq{"lot_id": lotID}).
		OrderBy("price ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	offers := []models.SourceOffer{}
	if err := c.db.SelectContext(ctx, &offers, query, args...); err != nil {
		return nil, classify(err, "offers for lot %d", lotID)
	}
	return offers, nil
}

func (c *Catalog) DistinctCategories(ctx context.Context) ([]string, error) {
	query := `
        SELECT DISTINCT category FROM lots
        WHERE category IS NOT NULL AND category <> ''
        ORDER BY category ASC`
	categories := []string{}
	if err := c.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, classify(err, "categories")
	}
	return categories, nil
}

// SearchLots - расширенный поиск: текст, категория, диапазон цены, сортировка по цене или дате
func (c *Catalog) SearchLots(ctx context.Context, q models.LotQuery) ([]models.Lot, error) {
	where := sq.And{}
	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + text + "%"
		where = append(where, sq.Or{
			c.db.likeOp("simplified_name", pattern),
			c.db.likeOp("original_name", pattern),
			c.db.likeOp("chinese_name", pattern),
			c.db.likeOp("lot_number", pattern),
			c.db.likeOp("customer", pattern),
		})
	}
	if q.Category != "" && q.Category != "all" {
		where = append(where, sq.Eq{"category": q.Category})
	}
	if q.MinPrice != nil {
		where = append(where, sq.GtOrEq{"tender_price": *q.MinPrice})
	}
	if q.MaxPrice != nil {
		where = append(where, sq.LtOrEq{"tender_price": *q.MaxPrice})
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLotsLimit
	}
	if limit > MaxLotsLimit {
		limit = MaxLotsLimit
	}

	builder := c.db.builder().Select(lotColumns...).From("lots").Where(where).Limit(uint64(limit))
	switch q.SortBy {
	case "price":
		builder = builder.OrderBy("tender_price ASC", "id ASC")
	case "priceDesc":
		builder = builder.OrderBy("tender_price DESC", "id ASC")
	default:
		builder = builder.OrderBy("created_at DESC", "id DESC")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	lots := []models.Lot{}
	if err := c.db.SelectContext(ctx, &lots, query, args...); err != nil {
		return nil, classify(err, "search lots")
	}
	return lots, nil
}

// ScanLots потоково читает весь каталог в порядке id внутри read-only снимка.
// Ошибка из fn прерывает чтение.
func (c *Catalog) ScanLots(ctx context.Context, fn func(models.Lot) error) error {
	query := fmt.Sprintf("SELECT %s FROM lots ORDER BY id ASC", strings.Join(lotColumns, ", "))

	err := c.readTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := tx.QueryxContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var lot models.Lot
			if err := rows.StructScan(&lot); err != nil {
				return err
			}
			if err := fn(lot); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	return classify(err, "scan lots")
}

// Summary считает агрегаты каталога для страницы статистики
func (c *Catalog) Summary(ctx context.Context, since time.Time) (*models.CatalogSummary, error) {
	var totals struct {
		Total    int             `db:"total"`
		TotalSum decimal.Decimal `db:"total_sum"`
		China    int             `db:"china"`
		Services int             `db:"services"`
		Searched int             `db:"searched"`
	}
	summary := &models.CatalogSummary{Statuses: map[string]int{}}

	err := c.readTx(ctx, func(tx *sqlx.Tx) error {
		totalsQuery := tx.Rebind(`
            SELECT
                COUNT(*) AS total,
                COALESCE(SUM(tender_price * quantity), 0) AS total_sum,
                COALESCE(SUM(CASE WHEN suitable_for_china THEN 1 ELSE 0 END), 0) AS china,
                COALESCE(SUM(CASE WHEN is_service THEN 1 ELSE 0 END), 0) AS services,
                COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS searched
            FROM lots`)
		if err := tx.GetContext(ctx, &totals, totalsQuery, models.LotStatusSearched); err != nil {
			return err
		}

		var statuses []struct {
			Status string `db:"status"`
			Count  int    `db:"count"`
		}
		if err := tx.SelectContext(ctx, &statuses, `SELECT status, COUNT(*) AS count FROM lots GROUP BY status`); err != nil {
			return err
		}
		for _, s := range statuses {
			summary.Statuses[s.Status] = s.Count
		}

		summary.Categories = []models.CategoryCount{}
		categoriesQuery := `
            SELECT COALESCE(category, '') AS category, COUNT(*) AS count
            FROM lots GROUP BY category ORDER BY count DESC, category ASC`
		if err := tx.SelectContext(ctx, &summary.Categories, categoriesQuery); err != nil {
			return err
		}

		if err := tx.GetContext(ctx, &summary.TotalProducts, `SELECT COUNT(*) FROM source_offers`); err != nil {
			return err
		}
		return tx.GetContext(ctx, &summary.NewToday, tx.Rebind(`SELECT COUNT(*) FROM lots WHERE created_at >= ?`), since)
	})
	if err != nil {
		return nil, classify(err, "catalog summary")
	}

	summary.TotalLots = totals.Total
	summary.ChinaSuitable = totals.China
	summary.Services = totals.Services
	summary.SearchedLots = totals.Searched
	summary.TotalSum = totals.TotalSum
	return summary, nil
}

// CreateLot используется инструментами загрузки и тестами; HTTP API лоты не меняет
func (c *Catalog) CreateLot(ctx context.Context, lot *models.Lot) error {
	if lot.Status == "" {
		lot.Status = models.LotStatusNew
	}
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now().UTC()
	}
	query := c.db.Rebind(`
        INSERT INTO lots
            (announce_id, lot_number, original_name, simplified_name, chinese_name, category,
             tender_price, quantity, unit, customer, is_service, suitable_for_china, status, created_at)
        VALUES
            (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING id`)
	err := c.db.QueryRowxContext(ctx, query,
		lot.AnnounceID, lot.LotNumber, lot.OriginalName, lot.SimplifiedName, lot.ChineseName, lot.Category,
		lot.TenderPrice, lot.Quantity, lot.Unit, lot.Customer, lot.IsService, lot.SuitableForChina,
		lot.Status, lot.CreatedAt).
		Scan(&lot.ID)
	return classify(err, "create lot %s", lot.LotNumber)
}

func (c *Catalog) CreateOffer(ctx context.Context, offer *models.SourceOffer) error {
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = time.Now().UTC()
	}
	query := c.db.Rebind(`
        INSERT INTO source_offers
            (lot_id, title, url, price, marketplace, discovery_method, created_at)
        VALUES
            (?, ?, ?, ?, ?, ?, ?)
        RETURNING id`)
	err := c.db.QueryRowxContext(ctx, query,
		offer.LotID, offer.Title, offer.URL, offer.Price, offer.Marketplace, offer.DiscoveryMethod, offer.CreatedAt).
		Scan(&offer.ID)
	return classify(err, "create offer for lot %d", offer.LotID)
}

// readTx выполняет fn в транзакции только для чтения (снимок для postgres)
func (c *Catalog) readTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := c.db.BeginTxx(ctx, c.db.snapshotOptions())
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
