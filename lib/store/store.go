// Package store defines the interface for database implementations keeping track of the addresses subscribed to the
// service.
package store

import (
	"context"
	"errors"
)

// DB defines required methods for the tracked addresses store
type DB interface {
	// TrackAddress records a new subscription to address in chain and returns the id of the tracked address.
	TrackAddress(ctx context.Context, chainID, address string) ([]byte, error)
	// UntrackAddress records the end of a subscription to address in chain. The address is no longer tracked once it
	// has no subscriptions left.
	UntrackAddress(ctx context.Context, chainID, address string) error
	// GetAddresses returns the tracked addresses of the chains indicated, every chain if none is.
	GetAddresses(ctx context.Context, chainIDs []string) ([]TrackedAddresses, error)
}

// Errors returned
var (
	ErrAddrNotFound = errors.New("address was not found in store")
	ErrUnknownType  = errors.New("unknown database type")
)
