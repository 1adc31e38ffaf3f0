package domain

import "fmt"

// OutOfStockError reports a buy attempt with no purchasable candidate. It
// covers both "unknown product" and "known but depleted"; the two are not
// distinguished at this layer.
type OutOfStockError struct {
	Name string
}

func (e OutOfStockError) Error() string {
	return fmt.Sprintf("product %q not available or out of stock", e.Name)
}

// NotFoundError reports a restock attempt against a name with no matching
// records at all.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("product %q not found", e.Name)
}

// InvalidQuantityError reports a non-positive restock quantity. The request
// is rejected before the store is touched.
type InvalidQuantityError struct {
	Quantity int
}

func (e InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid restock quantity %d", e.Quantity)
}

// ValidationError reports a malformed request shape, e.g. a missing product
// name.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError reports a commit that could not be durably applied. The
// store guarantees no partial write is visible: a later snapshot observes the
// pre-mutation state.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying backend error.
func (e PersistenceError) Unwrap() error { return e.Err }
