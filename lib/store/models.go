package store

import "time"

// Address contains the fields for a tracked address saved to DB.
type Address struct {
	ID            []byte    `json:"id"`
	Addr          string    `json:"address"`
	Subscriptions int64     `json:"subscriptions"`
	LastSeen      time.Time `json:"lastSeen"`
}

// TrackedAddresses contains the addresses tracked for a chain.
type TrackedAddresses struct {
	ChainID string    `json:"chainId"`
	Addr    []Address `json:"addresses"`
}
