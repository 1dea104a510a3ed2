// Package journal records which notifications were already delivered so the
// overlapping boundary block between two reconciliation cycles does not
// produce the same message twice.
package journal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketDelivered = []byte("delivered")

// Journal is a bbolt-backed set of delivery keys with a retention window.
type Journal struct {
	db        *bbolt.DB
	retention time.Duration
	now       func() time.Time
}

// Open opens or creates the journal at path. Entries older than retention
// are dropped by Prune.
func Open(path string, retention time.Duration) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("journal: create directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDelivered)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create bucket: %w", err)
	}
	return &Journal{db: db, retention: retention, now: time.Now}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

// Claim records key and reports whether this is its first delivery.
func (j *Journal) Claim(key string) (bool, error) {
	first := false
	err := j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDelivered)
		k := []byte(key)
		if b.Get(k) != nil {
			return nil
		}
		first = true
		return b.Put(k, encodeTime(j.now()))
	})
	if err != nil {
		return false, fmt.Errorf("journal: claim %s: %w", key, err)
	}
	return first, nil
}

// Prune deletes entries older than the retention window and returns how
// many were removed.
func (j *Journal) Prune() (int, error) {
	cutoff := j.now().Add(-j.retention)
	removed := 0
	err := j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDelivered)
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if len(v) != 8 || decodeTime(v).Before(cutoff) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return removed, nil
}

// Count returns the number of retained entries.
func (j *Journal) Count() (int, error) {
	n := 0
	err := j.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketDelivered).Stats().KeyN
		return nil
	})
	return n, err
}

func encodeTime(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixNano()))
	return b
}

func decodeTime(b []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(b)))
}
