package repository

import (
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound — строка не найдена, либо нарушен внешний ключ (родитель отсутствует).
	ErrNotFound = errors.New("not found")
	// ErrConstraint — нарушение уникальности (surfaced from upsert races).
	ErrConstraint = errors.New("constraint violation")
	// ErrUnavailable — БД недоступна (сетевая ошибка, таймаут соединения).
	ErrUnavailable = errors.New("store unavailable")
)

// Postgres SQLSTATE codes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// wrapError переводит ошибку pgx в типизированную ошибку слоя хранения,
// сохраняя исходный текст через %w-обёртку.
func wrapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, ErrConstraint)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, ErrNotFound)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %v: %w", op, err, ErrUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}
