package db

import (
	"errors"
	"testing"

	"github.com/tarancss/addrprof/lib/store"
)

func TestNewUnknown(t *testing.T) {
	if _, err := New("sqlite", "file.db"); !errors.Is(err, store.ErrUnknownType) {
		t.Errorf("expected unknown type error, got %v", err)
	}

	if err := Close("sqlite", nil); err != nil {
		t.Errorf("Close error:%e", err)
	}
}
