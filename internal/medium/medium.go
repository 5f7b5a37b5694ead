// Package medium provides the string-to-string key-value stores that hold the
// session snapshot. Every implementation has a finite capacity counted as the
// sum of key and value lengths across all keys it holds.
package medium

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded is returned when a write would exceed the capacity.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrUnavailable is returned when the medium cannot be used at all.
	ErrUnavailable = errors.New("storage unavailable")
)

// Medium is a key-value store with a finite capacity.
type Medium interface {
	SetItem(ctx context.Context, key, value string) error
	// GetItem reports found=false with a nil error for a missing key.
	GetItem(ctx context.Context, key string) (value string, found bool, err error)
	RemoveItem(ctx context.Context, key string) error
	Close() error
}

func itemSize(key, value string) int {
	return len(key) + len(value)
}

func exceeds(capacity, used int) bool {
	return capacity > 0 && used > capacity
}
