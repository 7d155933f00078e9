package domain

import "errors"

// Error kinds surfaced by workflow operations. Callers compare with errors.Is.
var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrAlreadyReviewed     = errors.New("quote already reviewed")
	ErrOrderAlreadyAwarded = errors.New("order already awarded")
	ErrOrderClosed         = errors.New("order closed")
	ErrInvalidVendor       = errors.New("invalid vendor")
	ErrInvalidInput        = errors.New("invalid input")
	ErrIdempotencyConflict = errors.New("idempotency conflict")
	ErrConflict            = errors.New("conflict")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)

var kinds = []error{
	ErrUnauthenticated,
	ErrUnauthorized,
	ErrNotFound,
	ErrInvalidTransition,
	ErrAlreadyReviewed,
	ErrOrderAlreadyAwarded,
	ErrOrderClosed,
	ErrInvalidVendor,
	ErrInvalidInput,
	ErrIdempotencyConflict,
	ErrConflict,
	ErrStorageUnavailable,
}

// Kind returns the error kind err wraps, or nil when it wraps none.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
