// Package auth - учётные записи, пароли, токены и middleware для chi.
package auth

import (
	"context"
	"strings"
	"time"

	"tenderfinder/internal/apperror"
	"tenderfinder/models"

	"go.uber.org/zap"
)

// UserStore - хранилище пользователей (db.Users)
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	SeedAdmin(ctx context.Context, username, email, passwordHash string) (bool, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ToggleAdmin(ctx context.Context, id int64) (bool, error)
	DeleteUser(ctx context.Context, id int64) error
}

type Service struct {
	users      UserStore
	tokens     *TokenManager
	bcryptCost int
	log        *zap.Logger
}

func NewService(users UserStore, tokens *TokenManager, bcryptCost int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{users: users, tokens: tokens, bcryptCost: bcryptCost, log: log}
}

// Session - ответ на вход и регистрацию
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, username, email, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperror.AlreadyExists("user with this username or email already exists")
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: username, Email: email, PasswordHash: hash, CreatedAt: time.Now().UTC()}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return s.session(user)
}

// Login не различает "нет пользователя" и "неверный пароль"
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if apperror.KindOf(err) == apperror.KindNotFound {
		return nil, apperror.Unauthorized("invalid username or password")
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		s.log.Info("failed login", zap.String("username", user.Username))
		return nil, apperror.Unauthorized("invalid username or password")
	}
	return s.session(user)
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate проверяет токен и загружает пользователя. Удалённый пользователь - 401.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthorized("invalid or expired token")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if apperror.KindOf(err) == apperror.KindNotFound {
		return nil, apperror.Unauthorized("user no longer exists")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SeedAdmin создаёт администратора при первом запуске; повторные запуски ничего не меняют
func (s *Service) SeedAdmin(ctx context.Context, username, email, password string) error {
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	created, err := s.users.SeedAdmin(ctx, username, email, hash)
	if err != nil {
		return err
	}
	if created {
		s.log.Info("admin account created", zap.String("username", username))
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *Service) ToggleAdmin(ctx context.Context, actor *models.User, userID int64) (bool, error) {
	if actor.ID == userID {
		return false, apperror.Validation("cannot change your own admin flag")
	}
	isAdmin, err := s.users.ToggleAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	s.log.Info("admin flag toggled", zap.Int64("by", actor.ID), zap.Int64("user_id", userID), zap.Bool("is_admin", isAdmin))
	return isAdmin, nil
}

// DeleteUser удаляет пользователя вместе с его записями в леджере
func (s *Service) DeleteUser(ctx context.Context, actor *models.User, userID int64) error {
	if actor.ID == userID {
		return apperror.Validation("cannot delete yourself")
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.Int64("by", actor.ID), zap.Int64("user_id", userID))
	return nil
}
