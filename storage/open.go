// Package storage opens the single bbolt database file shared by
// kvstore and blobstore, the way database.NewDB opens one BoltDB file
// for the teacher's jobs and locks buckets.
package storage

import (
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// Open opens (creating if needed) the bbolt database at path.
func Open(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open store at %s", path)
	}
	return db, nil
}
