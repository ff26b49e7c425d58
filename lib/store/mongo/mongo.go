// Package mongo implements the interface for MongoDB.
package mongo

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarancss/addrprof/lib/store"
	"github.com/tarancss/addrprof/lib/util"
)

// database holds one collection of tracked addresses per chain id.
const database = "addr"

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// MongoAddress implements a store address to MongoDB.
type MongoAddress struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id"`
	Addr          string             `json:"address" bson:"address"`
	Subscriptions int64              `json:"subscriptions" bson:"subscriptions"`
	LastSeen      time.Time          `json:"lastSeen" bson:"lastSeen"`
}

// Address converts a MongoAddress to store.Address type.
func (a MongoAddress) Address() store.Address {
	return store.Address{ID: a.ID[:], Addr: a.Addr, Subscriptions: a.Subscriptions, LastSeen: a.LastSeen}
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	err = c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c}, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

// TrackAddress inserts the address if it is not tracked yet, increments its subscriptions and sets the time it was
// last seen.
func (m *Mongo) TrackAddress(ctx context.Context, chainID, address string) ([]byte, error) {
	col := m.c.Database(database).Collection(chainID)

	filter := bson.M{"address": util.Lower(address)}
	update := bson.M{
		"$set": bson.M{"lastSeen": time.Now().UTC()},
		"$inc": bson.M{"subscriptions": 1},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var ma MongoAddress
	if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&ma); err != nil {
		return nil, fmt.Errorf("could not track address in db: %w", err)
	}

	return hex.DecodeString(ma.ID.Hex())
}

// UntrackAddress decrements the subscriptions of an address and deletes it when none are left.
func (m *Mongo) UntrackAddress(ctx context.Context, chainID, address string) error {
	col := m.c.Database(database).Collection(chainID)
	filter := bson.M{"address": util.Lower(address)}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ma MongoAddress

	err := col.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"subscriptions": -1}}, opts).Decode(&ma)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return store.ErrAddrNotFound
	}

	if err != nil {
		return fmt.Errorf("could not untrack address in db: %w", err)
	}

	if ma.Subscriptions > 0 {
		return nil
	}

	_, err = col.DeleteOne(ctx, bson.M{"_id": ma.ID, "subscriptions": bson.M{"$lte": 0}})

	return err
}

// GetAddresses returns the addresses tracked for the chains indicated in chainIDs, every chain when empty.
func (m *Mongo) GetAddresses(ctx context.Context, chainIDs []string) ([]store.TrackedAddresses, error) {
	cols, err := m.c.Database(database).ListCollections(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("error getting mongo DB object: %w", err)
	}
	defer cols.Close(ctx)

	addrs := []store.TrackedAddresses{}

	for cols.Next(ctx) {
		col := strings.Trim(cols.Current.Lookup("name").String(), `"`)

		if len(chainIDs) != 0 && !util.In(chainIDs, col) {
			continue
		}

		ta := store.TrackedAddresses{ChainID: col, Addr: []store.Address{}}

		docs, err := m.c.Database(database).Collection(col).Find(ctx, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("error reading tracked addresses of %s: %w", col, err)
		}

		for docs.Next(ctx) {
			var a MongoAddress
			if err = bson.Unmarshal(docs.Current, &a); err == nil {
				ta.Addr = append(ta.Addr, a.Address())
			}
		}

		_ = docs.Close(ctx)

		addrs = append(addrs, ta)
	}

	return addrs, nil
}

// DeleteChain drops the collection of tracked addresses of a chain.
func (m *Mongo) DeleteChain(ctx context.Context, chainID string) error {
	return m.c.Database(database).Collection(chainID).Drop(ctx)
}
