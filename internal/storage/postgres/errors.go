package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vendaro/commerce-engine/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isWriteConflict распознаёт коды, при которых транзакцию имеет смысл
// повторить: serialization_failure и deadlock_detected.
func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// mapConflict переводит повторяемый конфликт записи в доменную ошибку,
// остальные ошибки оборачивает контекстом.
func mapConflict(op string, err error) error {
	if err == nil {
		return nil
	}
	if isWriteConflict(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrStockConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
