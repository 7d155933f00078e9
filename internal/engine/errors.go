package engine

import (
	"fmt"

	"quoteline/internal/domain"
)

// storageError passes known kinds through and classifies everything else
// coming out of the store as StorageUnavailable. Cancelled and expired
// contexts become StorageUnavailable too and stay matchable with errors.Is.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	if domain.Kind(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}
