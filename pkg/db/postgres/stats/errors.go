package stats

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrStoreExecution matches every refresh rejected by the store.
var ErrStoreExecution = errors.New("store execution failure")

// ExecutionError carries the store diagnostic of a failed refresh batch.
type ExecutionError struct {
	Operation string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("refresh %s: %v", e.Operation, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is reports true for ErrStoreExecution so callers need not know the concrete type.
func (e *ExecutionError) Is(target error) bool { return target == ErrStoreExecution }

// Code returns the SQLSTATE reported by PostgreSQL, or "" when the failure
// happened before the server answered (connectivity, cancellation).
func (e *ExecutionError) Code() string {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
