package db

import (
	"context"
	"time"

	"tenderfinder/internal/apperror"
	"tenderfinder/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
)

// Ledger - пользовательские записи по лотам: избранное, просмотры, заметки, выигранные тендеры.
// lot_id не ссылается на каталог: каталог может жить в другой БД, висячие ссылки допустимы.
type Ledger struct {
	db *Conn
}

func NewLedger(db *Conn) *Ledger {
	return &Ledger{db: db}
}

// Избранное

func (l *Ledger) AddFavorite(ctx context.Context, userID, lotID int64, at time.Time) error {
	query := l.db.Rebind(`INSERT INTO favorites (user_id, lot_id, added_at) VALUES (?, ?, ?)`)
	_, err := l.db.ExecContext(ctx, query, userID, lotID, at)
	return classify(err, "favorite for lot %d", lotID)
}

func (l *Ledger) RemoveFavorite(ctx context.Context, userID, lotID int64) error {
	query := l.db.Rebind(`DELETE FROM favorites WHERE user_id = ? AND lot_id = ?`)
	_, err := l.db.ExecContext(ctx, query, userID, lotID)
	return classify(err, "remove favorite")
}

func (l *Ledger) IsFavorite(ctx context.Context, userID, lotID int64) (bool, error) {
	var count int
	query := l.db.Rebind(`SELECT COUNT(1) FROM favorites WHERE user_id = ? AND lot_id = ?`)
	if err := l.db.GetContext(ctx, &count, query, userID, lotID); err != nil {
		return false, classify(err, "is favorite")
	}
	return count > 0, nil
}

func (l *Ledger) ListFavorites(ctx context.Context, userID int64) ([]models.Favorite, error) {
	favorites := []models.Favorite{}
	query := l.db.Rebind(`
        SELECT user_id, lot_id, added_at FROM favorites
        WHERE user_id = ?
        ORDER BY added_at DESC, lot_id DESC`)
	if err := l.db.SelectContext(ctx, &favorites, query, userID); err != nil {
		return nil, classify(err, "list favorites")
	}
	return favorites, nil
}

// История просмотров (только добавление)

func (l *Ledger) RecordView(ctx context.Context, userID, lotID int64, at time.Time) error {
	query := l.db.Rebind(`INSERT INTO view_history (user_id, lot_id, viewed_at) VALUES (?, ?, ?)`)
	_, err := l.db.ExecContext(ctx, query, userID, lotID, at)
	return classify(err, "record view of lot %d", lotID)
}

func (l *Ledger) ListViewedLotIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	query := l.db.Rebind(`SELECT DISTINCT lot_id FROM view_history WHERE user_id = ? ORDER BY lot_id`)
	if err := l.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, classify(err, "viewed lots")
	}
	return ids, nil
}

func (l *Ledger) ListViews(ctx context.Context, userID int64, limit int) ([]models.ViewRecord, error) {
	views := []models.ViewRecord{}
	query := l.db.Rebind(`
        SELECT id, user_id, lot_id, viewed_at FROM view_history
        WHERE user_id = ?
        ORDER BY viewed_at DESC, id DESC
        LIMIT ?`)
	if err := l.db.SelectContext(ctx, &views, query, userID, limit); err != nil {
		return nil, classify(err, "view history")
	}
	return views, nil
}

// Заметки

// UpsertNote создаёт заметку или обновляет текст; created_at при обновлении не меняется
func (l *Ledger) UpsertNote(ctx context.Context, userID, lotID int64, text string, at time.Time) error {
	query := l.db.Rebind(`
        INSERT INTO notes (user_id, lot_id, text, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (user_id, lot_id) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at`)
	_, err := l.db.ExecContext(ctx, query, userID, lotID, text, at, at)
	return classify(err, "note for lot %d", lotID)
}

func (l *Ledger) GetNote(ctx context.Context, userID, lotID int64) (*models.Note, error) {
	note := &models.Note{}
	query := l.db.Rebind(`
        SELECT user_id, lot_id, text, created_at, updated_at FROM notes
        WHERE user_id = ? AND lot_id = ?`)
	if err := l.db.GetContext(ctx, note, query, userID, lotID); err != nil {
		return nil, classify(err, "note for lot %d", lotID)
	}
	return note, nil
}

func (l *Ledger) ListNotes(ctx context.Context, userID int64) ([]models.Note, error) {
	notes := []models.Note{}
	query := l.db.Rebind(`
        SELECT user_id, lot_id, text, created_at, updated_at FROM notes
        WHERE user_id = ?
        ORDER BY updated_at DESC, lot_id DESC`)
	if err := l.db.SelectContext(ctx, &notes, query, userID); err != nil {
		return nil, classify(err, "list notes")
	}
	return notes, nil
}

func (l *Ledger) DeleteNote(ctx context.Context, userID, lotID int64) error {
	query := l.db.Rebind(`DELETE FROM notes WHERE user_id = ? AND lot_id = ?`)
	_, err := l.db.ExecContext(ctx, query, userID, lotID)
	return classify(err, "delete note")
}

// Выигранные тендеры

func (l *Ledger) CreateWon(ctx context.Context, w *models.WonTender) error {
	query := l.db.Rebind(`
        INSERT INTO won_tenders (user_id, lot_id, actual_profit, expected_profit, notes, won_at)
        VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := l.db.ExecContext(ctx, query, w.UserID, w.LotID, w.ActualProfit, w.ExpectedProfit, w.Notes, w.WonAt)
	return classify(err, "won tender for lot %d", w.LotID)
}

func (l *Ledger) GetWon(ctx context.Context, userID, lotID int64) (*models.WonTender, error) {
	w := &models.WonTender{}
	query := l.db.Rebind(`
        SELECT user_id, lot_id, actual_profit, expected_profit, notes, won_at FROM won_tenders
        WHERE user_id = ? AND lot_id = ?`)
	if err := l.db.GetContext(ctx, w, query, userID, lotID); err != nil {
		return nil, classify(err, "won tender for lot %d", lotID)
	}
	return w, nil
}

func (l *Ledger) ListWon(ctx context.Context, userID int64) ([]models.WonTender, error) {
	won := []models.WonTender{}
	query := l.db.Rebind(`
        SELECT user_id, lot_id, actual_profit, expected_profit, notes, won_at FROM won_tenders
        WHERE user_id = ?
        ORDER BY won_at DESC, lot_id DESC`)
	if err := l.db.SelectContext(ctx, &won, query, userID); err != nil {
		return nil, classify(err, "list won tenders")
	}
	return won, nil
}

// UpdateWon меняет фактическую прибыль и/или заметки. Если записи нет - not_found.
func (l *Ledger) UpdateWon(ctx context.Context, userID, lotID int64, actualProfit decimal.NullDecimal, notes *string) error {
	update := l.db.builder().Update("won_tenders").Where(sq.Eq{"user_id": userID, "lot_id": lotID})
	changed := false
	if actualProfit.Valid {
		update = update.Set("actual_profit", actualProfit)
		changed = true
	}
	if notes != nil {
		update = update.Set("notes", *notes)
		changed = true
	}
	if !changed {
		_, err := l.GetWon(ctx, userID, lotID)
		return err
	}

	query, args, err := update.ToSql()
	if err != nil {
		return err
	}
	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err, "update won tender for lot %d", lotID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classify(err, "update won tender for lot %d", lotID)
	}
	if affected == 0 {
		return apperror.NotFound("won tender for lot %d not found", lotID)
	}
	return nil
}

func (l *Ledger) DeleteWon(ctx context.Context, userID, lotID int64) error {
	query := l.db.Rebind(`DELETE FROM won_tenders WHERE user_id = ? AND lot_id = ?`)
	_, err := l.db.ExecContext(ctx, query, userID, lotID)
	return classify(err, "delete won tender")
}

// Counters собирает счётчики пользователя одним запросом.
// viewed_count - число различных просмотренных лотов.
func (l *Ledger) Counters(ctx context.Context, userID int64) (*models.UserCounters, error) {
	c := &models.UserCounters{}
	query := l.db.Rebind(`
        SELECT
            (SELECT COUNT(DISTINCT lot_id) FROM view_history WHERE user_id = ?) AS viewed_count,
            (SELECT COUNT(*) FROM favorites WHERE user_id = ?) AS favorites_count,
            (SELECT COUNT(*) FROM notes WHERE user_id = ?) AS notes_count,
            (SELECT COUNT(*) FROM won_tenders WHERE user_id = ?) AS won_count,
            (SELECT COALESCE(SUM(actual_profit), 0) FROM won_tenders WHERE user_id = ?) AS total_actual_profit,
            (SELECT COALESCE(SUM(expected_profit), 0) FROM won_tenders WHERE user_id = ?) AS total_expected_profit`)
	if err := l.db.GetContext(ctx, c, query, userID, userID, userID, userID, userID, userID); err != nil {
		return nil, classify(err, "user counters")
	}
	return c, nil
}
