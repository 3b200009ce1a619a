package store

import (
	"context"
	"errors"
)

// ErrTxContention is returned when a transaction keeps losing against
// concurrent writers on the same path.
var ErrTxContention = errors.New("store: transaction retries exhausted")

// TxFunc receives the current raw value at a path (nil when absent) and
// returns the replacement value. Returning commit=false aborts the
// transaction and leaves the stored value unchanged.
type TxFunc func(current []byte) (next any, commit bool)

// Store is a path-addressed hierarchical key-value tree. Paths use "/" as the
// separator and are relative to an environment root, e.g.
// "rooms/{roomId}/activeQuestionId". Values are JSON-encoded.
//
// It is the only durable state in the system: the conversation engine, the PIN
// registry and the host API all coordinate exclusively through it.
type Store interface {
	// Get returns the raw value at path, or nil when absent.
	Get(ctx context.Context, path string) ([]byte, error)

	// Put overwrites the value at path. A nil value deletes the node.
	Put(ctx context.Context, path string, value any) error

	// PutIfAbsent writes only when the path has no value yet and reports
	// whether the write happened.
	PutIfAbsent(ctx context.Context, path string, value any) (bool, error)

	// Children returns the immediate child nodes of path, keyed by the
	// child's name. Grandchildren are not included.
	Children(ctx context.Context, path string) (map[string][]byte, error)

	// Transaction atomically replaces the value at path through fn and
	// returns the value stored after the transaction finished, whether or
	// not fn committed. Conflict retries are handled here, not by callers.
	Transaction(ctx context.Context, path string, fn TxFunc) ([]byte, error)
}
