package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/radboard/internal/logger"
	"github.com/radboard/internal/model"
	"github.com/radboard/internal/repository"
	"github.com/radboard/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials — пара username/password не подошла.
	// Намеренно не различает "нет пользователя" и "не тот пароль".
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken — username уже занят.
	ErrUsernameTaken = errors.New("username taken")
	// ErrValidation — username/password не прошли проверку формата.
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited — слишком много попыток логина.
	ErrRateLimited = errors.New("too many attempts")
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 6
	maxPasswordLen = 72 // предел bcrypt
	maxAvatarLen   = 8  // рун; глиф-аватар, не текст
)

// UserStore — операции auth-сервиса над пользователями.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// Service выдаёт и гасит сессии. Токен сессии — непрозрачный uuid,
// живущий только в SessionStore с TTL; таблицы сессий в БД нет.
type Service struct {
	users    UserStore
	sessions storage.SessionStore
	ttl      time.Duration
}

func NewService(users UserStore, sessions storage.SessionStore, ttl time.Duration) *Service {
	return &Service{users: users, sessions: sessions, ttl: ttl}
}

// Register создаёт пользователя с глиф-аватаром. Гонка на один username
// разрешается уникальным индексом БД: проигравший получает ErrUsernameTaken.
func (s *Service) Register(ctx context.Context, username, password, avatar string) (*model.User, error) {
	defer logger.DeferLogDuration("auth.Register", time.Now())()
	username = strings.TrimSpace(username)
	avatar = strings.TrimSpace(avatar)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(avatar) > maxAvatarLen {
		return nil, fmt.Errorf("avatar too long: %w", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth.Register hash: %w", err)
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Avatar:       avatar,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConstraint) {
			return nil, fmt.Errorf("%s: %w", username, ErrUsernameTaken)
		}
		return nil, fmt.Errorf("auth.Register: %w", err)
	}
	logger.Infof("auth: зарегистрирован пользователь %s", username)
	return u, nil
}

// Login проверяет пароль и выдаёт токен сессии.
func (s *Service) Login(ctx context.Context, username, password string) (token string, user *model.User, err error) {
	defer logger.DeferLogDuration("auth.Login", time.Now())()
	username = strings.TrimSpace(username)

	allowed, err := s.sessions.CheckLoginRateLimit(ctx, username)
	if err != nil {
		logger.Errorf("auth: rate limit %s: %v", username, err)
	} else if !allowed {
		return "", nil, fmt.Errorf("%s: %w", username, ErrRateLimited)
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("auth.Login: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token = uuid.New().String()
	if err := s.sessions.SetSession(ctx, token, u.ID, s.ttl); err != nil {
		return "", nil, fmt.Errorf("auth.Login session: %w", err)
	}
	return token, u, nil
}

// Logout гасит сессию. Неизвестный токен — no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("auth.Logout: %w", err)
	}
	return nil
}

func validateCredentials(username, password string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return fmt.Errorf("username length: %w", ErrValidation)
	}
	if strings.ContainsAny(username, " \t\n") {
		return fmt.Errorf("username contains whitespace: %w", ErrValidation)
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return fmt.Errorf("password length: %w", ErrValidation)
	}
	return nil
}
