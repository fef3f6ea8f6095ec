package cache

import (
	"fmt"

	errs "github.com/jrsteele09/go-token-broker/internal/errors"
)

// StoreError is returned by every Client operation that failed at the
// backend: connection refused, timeout, or an error reply. An absent key is
// never a StoreError.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is lets callers match with errors.Is(err, errs.ErrStore).
func (e *StoreError) Is(target error) bool {
	return target == errs.ErrStore
}
