package cli

import (
	"github.com/inboxtriage/engine/blobstore"
	"github.com/inboxtriage/engine/kvstore"
	"github.com/inboxtriage/engine/storage"
)

// dbCloser is the subset of *bbolt.DB the CLI needs to clean up on exit.
type dbCloser interface {
	Close() error
}

// openStores opens the single shared bbolt file backing both kvstore and
// blobstore: same DB file, two buckets.
func openStores(path string) (dbCloser, kvstore.Store, blobstore.Store, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	kv, err := kvstore.NewBoltStore(db)
	if err != nil {
		return nil, nil, nil, err
	}
	blobs, err := blobstore.NewBoltStore(db)
	if err != nil {
		return nil, nil, nil, err
	}
	return db, kv, blobs, nil
}
