package blobstore

import (
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

const bucketName = "blobs"

// BoltStore is a bbolt-backed Store, sharing the database file that backs
// kvstore.BoltStore the way the teacher keeps jobs and locks as separate
// buckets of one BoltDB file (database/boltdb.go).
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the blobs bucket on an already-open
// bbolt DB.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return errors.Wrapf(err, "create %s bucket", bucketName)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize blobstore bucket")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) ReadOrInit(name string, initContent []byte) ([]byte, Handle, error) {
	var content []byte
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		v := b.Get([]byte(name))
		if v != nil {
			content = append([]byte(nil), v...)
			return nil
		}
		if err := b.Put([]byte(name), initContent); err != nil {
			return err
		}
		content = append([]byte(nil), initContent...)
		return nil
	})
	if err != nil {
		return nil, "", errors.Wrapf(err, "read or init blob %q", name)
	}
	return content, Handle(name), nil
}

// Write atomically replaces the blob content in a single bbolt transaction;
// a torn process death never observes a half-written document.
func (s *BoltStore) Write(handle Handle, content []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put([]byte(handle), content)
	})
	return errors.Wrapf(err, "write blob %q", handle)
}

func (s *BoltStore) Trash(name string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Delete([]byte(name))
	})
	return errors.Wrapf(err, "trash blob %q", name)
}
