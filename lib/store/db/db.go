// Package db implements the opening and graceful closing of database connections.
package db

import (
	"fmt"

	"github.com/tarancss/addrprof/lib/store"
	"github.com/tarancss/addrprof/lib/store/mongo"
	"github.com/tarancss/addrprof/lib/store/postgres"
)

// Database types accepted by New, as set in the dbtype configuration field.
const (
	MONGODB  string = "mongodb"    // MongoDB, connection is a mongodb:// uri
	POSTGRES string = "postgresql" // PostgreSQL, connection is a lib/pq connection string
)

// New returns a new database connection according to the options (database type).
func New(options, connection string) (store.DB, error) {
	switch options {
	case MONGODB:
		return mongo.New(connection)
	case POSTGRES:
		return postgres.New(connection)
	}

	return nil, fmt.Errorf("%w: %q", store.ErrUnknownType, options)
}

// Close gracefully closes the database connection.
func Close(options string, dh store.DB) error {
	switch options {
	case MONGODB:
		return dh.(*mongo.Mongo).CloseMongo()
	case POSTGRES:
		return dh.(*postgres.Postgres).ClosePostgres()
	}

	return nil
}
