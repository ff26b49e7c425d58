// Package postgres implements the interface for PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tarancss/addrprof/lib/store"
	"github.com/tarancss/addrprof/lib/util"
)

const schema = `CREATE TABLE IF NOT EXISTS tracked_addresses (
	id            BIGSERIAL PRIMARY KEY,
	chain_id      TEXT NOT NULL,
	address       TEXT NOT NULL,
	subscriptions BIGINT NOT NULL DEFAULT 0,
	last_seen     TIMESTAMPTZ NOT NULL,
	UNIQUE (chain_id, address)
)`

const trackQuery = `INSERT INTO tracked_addresses (chain_id, address, subscriptions, last_seen)
VALUES ($1, $2, 1, $3)
ON CONFLICT (chain_id, address)
DO UPDATE SET subscriptions = tracked_addresses.subscriptions + 1, last_seen = EXCLUDED.last_seen
RETURNING id`

const untrackQuery = `UPDATE tracked_addresses SET subscriptions = subscriptions - 1
WHERE chain_id = $1 AND address = $2
RETURNING subscriptions`

const selectQuery = `SELECT id, chain_id, address, subscriptions, last_seen FROM tracked_addresses
WHERE cardinality($1::text[]) = 0 OR chain_id = ANY($1::text[])
ORDER BY chain_id, id`

type Postgres struct {
	db *sql.DB
}

// New returns a postgres client connection to the specified database in 'connection' and creates the tracked
// addresses table if needed.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	if _, err = db.ExecContext(ctx, schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("cannot create schema in %s: %w", connection, err)
	}

	return &Postgres{db: db}, nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

func encodeID(id int64) []byte {
	b := make([]byte, 8) //nolint:gomnd // int64
	binary.BigEndian.PutUint64(b, uint64(id))

	return b
}

// TrackAddress inserts the address if it is not tracked yet, increments its subscriptions and sets the time it was
// last seen.
func (p *Postgres) TrackAddress(ctx context.Context, chainID, address string) ([]byte, error) {
	var id int64
	if err := p.db.QueryRowContext(ctx, trackQuery, chainID, util.Lower(address), time.Now().UTC()).
		Scan(&id); err != nil {
		return nil, fmt.Errorf("could not track address in db: %w", err)
	}

	return encodeID(id), nil
}

// UntrackAddress decrements the subscriptions of an address and deletes it when none are left.
func (p *Postgres) UntrackAddress(ctx context.Context, chainID, address string) error {
	var n int64

	err := p.db.QueryRowContext(ctx, untrackQuery, chainID, util.Lower(address)).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrAddrNotFound
	}

	if err != nil {
		return fmt.Errorf("could not untrack address in db: %w", err)
	}

	if n > 0 {
		return nil
	}

	_, err = p.db.ExecContext(ctx, `DELETE FROM tracked_addresses WHERE chain_id = $1 AND address = $2
AND subscriptions <= 0`, chainID, util.Lower(address))

	return err
}

// GetAddresses returns the addresses tracked for the chains indicated in chainIDs, every chain when empty.
func (p *Postgres) GetAddresses(ctx context.Context, chainIDs []string) ([]store.TrackedAddresses, error) {
	if chainIDs == nil {
		chainIDs = []string{}
	}

	rows, err := p.db.QueryContext(ctx, selectQuery, pq.Array(chainIDs))
	if err != nil {
		return nil, fmt.Errorf("error reading tracked addresses: %w", err)
	}
	defer rows.Close()

	addrs := []store.TrackedAddresses{}

	for rows.Next() {
		var (
			id    int64
			chain string
			a     store.Address
		)

		if err = rows.Scan(&id, &chain, &a.Addr, &a.Subscriptions, &a.LastSeen); err != nil {
			return nil, err
		}

		a.ID = encodeID(id)

		if n := len(addrs); n == 0 || addrs[n-1].ChainID != chain {
			addrs = append(addrs, store.TrackedAddresses{ChainID: chain})
		}

		addrs[len(addrs)-1].Addr = append(addrs[len(addrs)-1].Addr, a)
	}

	return addrs, rows.Err()
}

// DeleteChain deletes the tracked addresses of a chain.
func (p *Postgres) DeleteChain(ctx context.Context, chainID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM tracked_addresses WHERE chain_id = $1`, chainID)

	return err
}
