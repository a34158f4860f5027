package tokenstore

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketName = "auth"
	tokenKey   = "token"
)

// BoltConfig represents settings of the bbolt store.
type BoltConfig struct {
	Path string `mapstructure:"path" default:"config/token.db" validate:"required"`
}

// BoltStore keeps the token in a bbolt database.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create token directory")
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open token database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create token bucket")
	}

	zlog.Debug().Msgf("token database opened: path=%s", path)
	return &BoltStore{db: db}, nil
}

// Load returns the stored token, or an empty string when none is stored.
func (s *BoltStore) Load() (string, error) {
	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errors.New("bucket not found")
		}
		token = string(b.Get([]byte(tokenKey)))
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to load token")
	}
	return token, nil
}

// Save stores the token.
func (s *BoltStore) Save(token string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errors.New("bucket not found")
		}
		return b.Put([]byte(tokenKey), []byte(token))
	})
	return errors.Wrap(err, "failed to save token")
}

// Clear removes the stored token.
func (s *BoltStore) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return errors.New("bucket not found")
		}
		return b.Delete([]byte(tokenKey))
	})
	return errors.Wrap(err, "failed to clear token")
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
