package sqlite

import "fmt"

// ConnectionError indicates the database could not be opened, configured
// or migrated.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to open document store at %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// StoreError wraps a failed store operation with the operation name.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("document store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// DimensionError reports an embedding model whose vectors are wider than
// the fixed store column. Narrower vectors are zero-padded; wider ones
// cannot be stored.
type DimensionError struct {
	Model          string
	ModelDimension int
	StoreDimension int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf(
		"embedding model %s produces %d dimensions but the store holds at most %d; use a model with a 'dimensions' reduction parameter or a smaller model",
		e.Model, e.ModelDimension, e.StoreDimension)
}
