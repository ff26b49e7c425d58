//go:build integration
// +build integration

package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/tarancss/addrprof/lib/store"
)

var uri = "mongodb://localhost:27017"

// TestTrackAddress requires an available MongoDB server at localhost:27017.
func TestTrackAddress(t *testing.T) {
	m, err := New(uri)
	if err != nil {
		t.Fatalf("err:%e", err)
	}
	defer m.CloseMongo()

	ctx := context.Background()
	chain, address := "test-31", "0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c4"

	_ = m.DeleteChain(ctx, chain)

	id1, err := m.TrackAddress(ctx, chain, address)
	if err != nil || len(id1) != 12 {
		t.Fatalf("TrackAddress err:%e id:%x", err, id1)
	}

	id2, err := m.TrackAddress(ctx, chain, address)
	if err != nil || string(id1) != string(id2) {
		t.Errorf("TrackAddress twice err:%e ids:%x %x", err, id1, id2)
	}

	addrs, err := m.GetAddresses(ctx, []string{chain})
	if err != nil || len(addrs) != 1 || len(addrs[0].Addr) != 1 {
		t.Fatalf("GetAddresses err:%e addrs:%+v", err, addrs)
	}

	if a := addrs[0].Addr[0]; a.Subscriptions != 2 || a.Addr != "0x357dd3856d856197c1a000bbab4abcb97dfc92c4" {
		t.Errorf("wrong tracked address:%+v", a)
	}

	// the address stays tracked until its last subscription ends
	if err = m.UntrackAddress(ctx, chain, address); err != nil {
		t.Errorf("UntrackAddress err:%e", err)
	}

	if addrs, err = m.GetAddresses(ctx, []string{chain}); err != nil || len(addrs) != 1 ||
		len(addrs[0].Addr) != 1 || addrs[0].Addr[0].Subscriptions != 1 {
		t.Errorf("GetAddresses after untrack err:%e addrs:%+v", err, addrs)
	}

	if err = m.UntrackAddress(ctx, chain, address); err != nil {
		t.Errorf("UntrackAddress err:%e", err)
	}

	if addrs, err = m.GetAddresses(ctx, []string{chain}); err != nil || (len(addrs) == 1 && len(addrs[0].Addr) != 0) {
		t.Errorf("address still tracked err:%e addrs:%+v", err, addrs)
	}

	if err = m.UntrackAddress(ctx, chain, address); !errors.Is(err, store.ErrAddrNotFound) {
		t.Errorf("UntrackAddress untracked err:%v", err)
	}

	_ = m.DeleteChain(ctx, chain)
}
