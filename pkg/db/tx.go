package db

import "context"

// TransactionFunc runs inside a transaction. Repositories called with the
// ctx it receives join that transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}
