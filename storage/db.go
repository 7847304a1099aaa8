package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	sessionsBucket     = []byte("Sessions")
	metaBucket         = []byte("Meta")
	httpSessionsBucket = []byte("HTTPSessions")
)

// ErrNotFound is returned when a key has no stored value
var ErrNotFound = errors.New("storage: not found")

// DB is the client-side database holding the durable session state
type DB struct {
	bolt *bolt.DB
}

// InitDB opens (creating if needed) maildash.db under dataDir
func InitDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "maildash.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{sessionsBucket, metaBucket, httpSessionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{bolt: db}, nil
}

// Close releases the database file lock
func (d *DB) Close() error {
	return d.bolt.Close()
}

func (d *DB) put(bucket []byte, key string, value []byte) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), value)
	})
}

// get copies the value out of the transaction; bbolt slices are only
// valid while it is open.
func (d *DB) get(bucket []byte, key string) ([]byte, error) {
	var out []byte
	err := d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (d *DB) delete(bucket []byte, key string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}
