package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

var historyBucket = []byte("conv_history")

// record is the persisted form of one session's history.
type record struct {
	History   []domain.Exchange `json:"history"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// BoltStore persists session history as JSON values in a bbolt file.
type BoltStore struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(historyBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load(_ context.Context, sessionID string) ([]domain.Exchange, error) {
	var rec record
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(historyBucket).Get([]byte(sessionID))
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return rec.History, nil
}

func (s *BoltStore) Save(_ context.Context, sessionID string, history []domain.Exchange) error {
	enc, err := json.Marshal(record{History: history, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).Put([]byte(sessionID), enc)
	})
}

func (s *BoltStore) Clear(_ context.Context, sessionID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).Delete([]byte(sessionID))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
