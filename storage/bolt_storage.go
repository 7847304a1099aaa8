package storage

import (
	"encoding/binary"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStorage implements fiber.Storage over the HTTPSessions bucket so the
// Fiber session middleware survives restarts. Each value is prefixed with
// its expiry as unix nanoseconds; zero means no expiry.
type BoltStorage struct {
	db  *DB
	now func() time.Time
}

// NewBoltStorage creates a fiber storage backed by db
func NewBoltStorage(db *DB) *BoltStorage {
	return &BoltStorage{db: db, now: time.Now}
}

// Get returns nil, nil for missing or expired keys
func (s *BoltStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	raw, err := s.db.get(httpSessionsBucket, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) < 8 {
		return nil, nil
	}

	exp := int64(binary.BigEndian.Uint64(raw[:8]))
	if exp != 0 && s.now().UnixNano() >= exp {
		_ = s.db.delete(httpSessionsBucket, key)
		return nil, nil
	}
	return raw[8:], nil
}

// Set stores val; exp <= 0 keeps it until deleted
func (s *BoltStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}

	var deadline int64
	if exp > 0 {
		deadline = s.now().Add(exp).UnixNano()
	}

	raw := make([]byte, 8+len(val))
	binary.BigEndian.PutUint64(raw[:8], uint64(deadline))
	copy(raw[8:], val)

	return s.db.put(httpSessionsBucket, key, raw)
}

// Delete removes key
func (s *BoltStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.db.delete(httpSessionsBucket, key)
}

// Reset drops every stored HTTP session
func (s *BoltStorage) Reset() error {
	return s.db.bolt.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(httpSessionsBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(httpSessionsBucket)
		return err
	})
}

// Close is a no-op; the owning DB is closed by main
func (s *BoltStorage) Close() error {
	return nil
}
