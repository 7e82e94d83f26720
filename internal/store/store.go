// Package store persists the optimized provider configuration between runs
// using a single-file bbolt database.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/couchcryptid/whereami/internal/optimize"
)

var (
	bucketConfig = []byte("config")
	keyRanked    = []byte("ranked")
)

// ErrNotFound reports that no ranked configuration has been saved yet.
var ErrNotFound = errors.New("ranked config not found")

// Store owns the bbolt handle. Open one Store per process; bbolt takes an
// exclusive file lock.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening config store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketConfig)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing config store: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRanked overwrites the persisted ranked configuration.
func (s *Store) SaveRanked(cfg optimize.RankedConfig) error {
	buf, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding ranked config: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConfig).Put(keyRanked, buf)
	})
}

// LoadRanked returns the persisted ranked configuration, or ErrNotFound.
func (s *Store) LoadRanked() (optimize.RankedConfig, error) {
	var cfg optimize.RankedConfig

	err := s.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket(bucketConfig).Get(keyRanked)
		if buf == nil {
			return ErrNotFound
		}
		return json.Unmarshal(buf, &cfg)
	})
	if err != nil {
		return optimize.RankedConfig{}, err
	}
	return cfg, nil
}
