package hostio

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const dedupBucket = "seen_access_numbers"

// DedupStore persists the last-seen TPL access number per meter in a bbolt
// database, so that a caller can recognise a telegram retransmitted on the
// same wM-Bus channel (common with T1 meters) and forward it to the sink
// only once. cmd/wmbusd opens a store but does not consult it.
type DedupStore struct {
	db *bolt.DB
}

// OpenDedupStore opens (or creates) the bbolt database used for
// deduplication.
func OpenDedupStore(path string) (*DedupStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("hostio: failed to open dedup database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(dedupBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("hostio: failed to create dedup bucket: %w", err)
	}
	return &DedupStore{db: db}, nil
}

// Close closes the database.
func (d *DedupStore) Close() error {
	return d.db.Close()
}

// IsNewAccessNumber reports whether this access number has been seen
// before for the given meter (mfct, id), and remembers it if not.
func (d *DedupStore) IsNewAccessNumber(mfct uint16, id uint32, accessNumber byte) (bool, error) {
	key := []byte(fmt.Sprintf("%04X:%08d", mfct, id))
	var isNew bool

	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(dedupBucket))
		stored := b.Get(key)
		if stored == nil || stored[0] != accessNumber {
			isNew = true
			return b.Put(key, []byte{accessNumber})
		}
		isNew = false
		return nil
	})
	return isNew, err
}

// ClearAll resets all remembered access numbers.
func (d *DedupStore) ClearAll() error {
	return d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(dedupBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(dedupBucket))
		return err
	})
}
