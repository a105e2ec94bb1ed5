package db

import (
	"context"
	"time"

	"tenderfinder/internal/apperror"
	"tenderfinder/models"
)

var userColumns = `id, username, email, password_hash, is_admin, created_at`

// Users - учётные записи. Живут в той же БД, что и леджер (каскадное удаление).
type Users struct {
	db *Conn
}

func NewUsers(db *Conn) *Users {
	return &Users{db: db}
}

func (s *Users) CreateUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	query := s.db.Rebind(`
        INSERT INTO users (username, email, password_hash, is_admin, created_at)
        VALUES (?, ?, ?, ?, ?)
        RETURNING id`)
	err := s.db.QueryRowxContext(ctx, query, u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.CreatedAt).
		Scan(&u.ID)
	return classify(err, "user %s", u.Username)
}

// SeedAdmin создаёт администратора, если пользователя с таким именем ещё нет.
// Возвращает true, если запись была создана.
func (s *Users) SeedAdmin(ctx context.Context, username, email, passwordHash string) (bool, error) {
	query := s.db.Rebind(`
        INSERT INTO users (username, email, password_hash, is_admin, created_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT DO NOTHING`)
	res, err := s.db.ExecContext(ctx, query, username, email, passwordHash, true, time.Now().UTC())
	if err != nil {
		return false, classify(err, "seed admin")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "seed admin")
	}
	return affected > 0, nil
}

func (s *Users) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err := s.db.GetContext(ctx, u, query, id); err != nil {
		return nil, classify(err, "user %d", id)
	}
	return u, nil
}

func (s *Users) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u := &models.User{}
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE username = ?`)
	if err := s.db.GetContext(ctx, u, query, username); err != nil {
		return nil, classify(err, "user %s", username)
	}
	return u, nil
}

// ExistsByUsernameOrEmail - проверка перед регистрацией; уникальность всё равно держит БД
func (s *Users) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int
	query := s.db.Rebind(`SELECT COUNT(1) FROM users WHERE username = ? OR email = ?`)
	if err := s.db.GetContext(ctx, &count, query, username, email); err != nil {
		return false, classify(err, "user exists")
	}
	return count > 0, nil
}

func (s *Users) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id ASC`
	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		return nil, classify(err, "list users")
	}
	return users, nil
}

// ToggleAdmin инвертирует флаг администратора и возвращает новое значение
func (s *Users) ToggleAdmin(ctx context.Context, id int64) (bool, error) {
	var isAdmin bool
	query := s.db.Rebind(`UPDATE users SET is_admin = NOT is_admin WHERE id = ? RETURNING is_admin`)
	if err := s.db.QueryRowxContext(ctx, query, id).Scan(&isAdmin); err != nil {
		return false, classify(err, "user %d", id)
	}
	return isAdmin, nil
}

// DeleteUser удаляет пользователя; избранное, просмотры, заметки и тендеры удаляются каскадом
func (s *Users) DeleteUser(ctx context.Context, id int64) error {
	query := s.db.Rebind(`DELETE FROM users WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return classify(err, "delete user %d", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classify(err, "delete user %d", id)
	}
	if affected == 0 {
		return apperror.NotFound("user %d not found", id)
	}
	return nil
}
