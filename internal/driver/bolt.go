package driver

import (
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

// BoltDriver stores each channel:table pair in its own bbolt bucket.
// Embedded and transactional; the natural choice when the kernel runs as a
// single binary without an external store.
type BoltDriver struct {
	mu      sync.Mutex
	db      *bolt.DB
	channel string
}

// NewBoltDriver opens (or creates) the bbolt database at path.
func NewBoltDriver(path string) (*BoltDriver, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}
	return &BoltDriver{db: db, channel: "gatetrap"}, nil
}

// SetChannel switches the namespace for all subsequent operations.
func (d *BoltDriver) SetChannel(name string) {
	d.mu.Lock()
	d.channel = name
	d.mu.Unlock()
}

func (d *BoltDriver) bucket(table string) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return []byte(d.channel + ":" + table)
}

// Get returns the stored value for key, and whether it exists.
func (d *BoltDriver) Get(key, table string) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(d.bucket(table))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("bolt get %s/%s: %w", table, key, err)
	}
	return out, out != nil, nil
}

// Save upserts the value for key in table.
func (d *BoltDriver) Save(key string, value []byte, table string) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(d.bucket(table))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("bolt save %s/%s: %w", table, key, err)
	}
	return nil
}

// Delete removes key from table.
func (d *BoltDriver) Delete(key, table string) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(d.bucket(table))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("bolt delete %s/%s: %w", table, key, err)
	}
	return nil
}

// GetAll returns every value in table.
func (d *BoltDriver) GetAll(table string) ([][]byte, error) {
	var out [][]byte
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(d.bucket(table))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			out = append(out, append([]byte(nil), v...))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt scan %s: %w", table, err)
	}
	return out, nil
}

// Rebuild drops and recreates all tables of the current channel.
func (d *BoltDriver) Rebuild() error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		for _, t := range AllTables {
			name := d.bucket(t)
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt rebuild: %w", err)
	}
	return nil
}

// Close closes the database.
func (d *BoltDriver) Close() error {
	return d.db.Close()
}
