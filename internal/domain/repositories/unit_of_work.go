package repositories

import (
	"context"
)

// TxFunc runs inside a transaction; ctx carries the transaction handle.
type TxFunc func(ctx context.Context) error

// UnitOfWork commits a contract write together with its audit row, or neither.
type UnitOfWork interface {
	Do(ctx context.Context, fn TxFunc) error
}
