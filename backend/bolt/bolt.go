// Package bolt provides a persistent silo.Backend backed by bbolt.
//
// All entries live in a single bucket. Create runs inside one update
// transaction, so insert-if-absent is atomic. Iteration runs inside a view
// transaction: each sequence is valid for a single range loop.
package bolt

import (
	"bytes"
	"iter"
	"strconv"

	"github.com/zoobzio/silo"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("silo")

// Backend wraps an open bbolt database.
type Backend struct {
	db *bbolt.DB
}

// Open opens (or creates) the database at path and ensures the bucket
// exists.
func Open(path string) (*Backend, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Backend{db: db}, nil
}

// Exists reports whether key is present.
func (b *Backend) Exists(key []byte, _ map[string]any) (bool, error) {
	var ok bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(bucketName).Get(key) != nil
		return nil
	})
	return ok, err
}

// Load returns the value stored at key.
func (b *Backend) Load(key []byte, _ map[string]any) ([]byte, bool, error) {
	var out []byte
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketName).Get(key); v != nil {
			out = bytes.Clone(v)
			found = true
		}
		return nil
	})
	return out, found, err
}

// Store writes value at key.
func (b *Backend) Store(key, value []byte, _ map[string]any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, value)
	})
}

// Delete removes key and returns the value it held.
func (b *Backend) Delete(key []byte, _ map[string]any) ([]byte, bool, error) {
	var out []byte
	var found bool
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		v := bkt.Get(key)
		if v == nil {
			return nil
		}
		out = bytes.Clone(v)
		found = true
		return bkt.Delete(key)
	})
	return out, found, err
}

// Create writes value only if key is absent, within one transaction.
func (b *Backend) Create(key, value []byte, _ map[string]any) (bool, error) {
	var created bool
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		if bkt.Get(key) != nil {
			return nil
		}
		created = true
		return bkt.Put(key, value)
	})
	return created, err
}

// Increment adjusts the ASCII-decimal counter at key.
func (b *Backend) Increment(key []byte, amount int64, _ map[string]any) (int64, error) {
	var total int64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		if v := bkt.Get(key); v != nil {
			n, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return err
			}
			total = n
		}
		total += amount
		return bkt.Put(key, []byte(strconv.FormatInt(total, 10)))
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Clear drops and recreates the bucket.
func (b *Backend) Clear() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

// Close closes the underlying database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Keys yields every key in bucket order. bbolt buffers are only valid
// inside the transaction, so yielded slices are copies.
func (b *Backend) Keys() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		err := b.db.View(func(tx *bbolt.Tx) error {
			c := tx.Bucket(bucketName).Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if !yield(bytes.Clone(k), nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// Values yields every value in bucket order.
func (b *Backend) Values() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		err := b.db.View(func(tx *bbolt.Tx) error {
			c := tx.Bucket(bucketName).Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				if !yield(bytes.Clone(v), nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// Entries yields every pair in bucket order.
func (b *Backend) Entries() iter.Seq2[silo.Entry, error] {
	return func(yield func(silo.Entry, error) bool) {
		err := b.db.View(func(tx *bbolt.Tx) error {
			c := tx.Bucket(bucketName).Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				e := silo.Entry{Key: bytes.Clone(k), Value: bytes.Clone(v)}
				if !yield(e, nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(silo.Entry{}, err)
		}
	}
}
