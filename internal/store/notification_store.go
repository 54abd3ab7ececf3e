package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"deck/internal/types"
)

var (
	bucketNotifications = []byte("notifications")
	keyHistory          = []byte("history")
)

// NotificationStore keeps the capped notification history as one JSON
// array under a single bucket key. Corrupt or missing data loads as empty
// so a bad write can never take the client down.
type NotificationStore struct {
	db *bolt.DB
}

func OpenNotificationStore(path string) (*NotificationStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("notification store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNotifications)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &NotificationStore{db: db}, nil
}

func (s *NotificationStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *NotificationStore) Load(ctx context.Context) ([]types.NotificationEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []types.NotificationEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketNotifications)
		if bucket == nil {
			return nil
		}
		data := bucket.Get(keyHistory)
		if len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, &entries); err != nil {
			entries = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *NotificationStore) Save(ctx context.Context, entries []types.NotificationEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketNotifications)
		if err != nil {
			return err
		}
		return bucket.Put(keyHistory, data)
	})
}
