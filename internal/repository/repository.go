// Пакет repository — доступ к таблицам preservation_info и preservation_events.
// Чистый SQL через pgx. Правил доступа и бизнес-логики здесь нет.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound — строка не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — нарушен естественный ключ.
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrAlreadyReceived — обновление ничего не меняет.
	ErrAlreadyReceived = errors.New("информация о сохранении уже получена")
)

// DBTX — общее подмножество *pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner открывает транзакции на пуле.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithPreservationTx выполняет fn с репозиторием, привязанным к одной транзакции.
// Ошибка fn откатывает транзакцию.
func (r *TxRunner) WithPreservationTx(ctx context.Context, fn func(repo PreservationRepository) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(NewPreservationRepository(tx))
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
