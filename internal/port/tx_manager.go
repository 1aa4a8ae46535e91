package port

import "context"

// TxManager scopes a function to one storage transaction. The function's
// context carries the transaction; repositories called with it join it.
// Returning an error rolls everything back.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
