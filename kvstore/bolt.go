package kvstore

import (
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

const bucketName = "kv"

// BoltStore is a bbolt-backed Store. It shares the underlying *bbolt.DB
// with blobstore.BoltStore so progress markers and the accumulator blob
// live in one file, the way the teacher keeps jobs and locks in one
// database with separate buckets.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the kv bucket on an already-open bbolt DB.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return errors.Wrapf(err, "create %s bucket", bucketName)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize kvstore bucket")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key string) (string, bool, error) {
	var val string
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		v := b.Get([]byte(key))
		if v != nil {
			val = string(v)
			ok = true
		}
		return nil
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "get key %q", key)
	}
	return val, ok, nil
}

func (s *BoltStore) Set(key, val string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put([]byte(key), []byte(val))
	})
	return errors.Wrapf(err, "set key %q", key)
}

func (s *BoltStore) Delete(key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Delete([]byte(key))
	})
	return errors.Wrapf(err, "delete key %q", key)
}

// SetMany writes every pair in a single transaction, so a crash never
// leaves a partially-applied batch of KV writes visible to the next tick.
func (s *BoltStore) SetMany(kv map[string]string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		for k, v := range kv {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "set many keys")
}
