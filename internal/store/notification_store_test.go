package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"deck/internal/types"
)

func TestNotificationStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenNotificationStore(filepath.Join(t.TempDir(), "deck.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	entries := []types.NotificationEntry{
		{ID: "n1", Type: types.NotificationPermission, Title: "Permission needed", SessionID: "s1", CreatedAt: time.Now().UTC()},
		{ID: "n2", Type: types.NotificationError, Title: "Agent error", Read: true},
	}
	if err := store.Save(ctx, entries); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != "n1" || !loaded[1].Read {
		t.Fatalf("unexpected entries: %+v", loaded)
	}
}

func TestNotificationStoreEmpty(t *testing.T) {
	store, err := OpenNotificationStore(filepath.Join(t.TempDir(), "deck.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty history")
	}
}

func TestNotificationStoreCorruptDataLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.db")
	store, err := OpenNotificationStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	err = store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotifications).Put(keyHistory, []byte("{not json"))
	})
	if err != nil {
		t.Fatalf("seed corrupt data: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected corrupt history to load empty")
	}
	store.Close()
}

func TestNotificationStorePathRequired(t *testing.T) {
	if _, err := OpenNotificationStore("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
