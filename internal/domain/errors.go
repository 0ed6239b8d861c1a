package domain

import "errors"

// Client-correctable rejections. These are expected outcomes and are never
// logged as system faults.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrAuctionClosed = errors.New("auction is not active")
	ErrBidTooLow     = errors.New("bid must be higher than current price")
	ErrForbidden     = errors.New("operation not permitted")
)

// ErrTransient wraps storage or transport faults that aborted an atomic unit.
// Nothing was committed; the caller may retry.
var ErrTransient = errors.New("transient failure")

// IsBusinessRejection reports whether err is one of the expected rejections.
func IsBusinessRejection(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAuctionClosed) ||
		errors.Is(err, ErrBidTooLow) ||
		errors.Is(err, ErrForbidden)
}
