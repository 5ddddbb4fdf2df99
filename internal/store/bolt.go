package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketStates     = []byte("states")
	bucketDiscovered = []byte("discovered")
)

var _ Store = (*BoltStore)(nil)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketStates, bucketDiscovered} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveStates writes a batch of states in one transaction.
func (s *BoltStore) SaveStates(states []*EntityState) error {
	if len(states) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStates)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketStates)
		}
		for _, st := range states {
			data, err := json.Marshal(st)
			if err != nil {
				return err
			}
			if err := b.Put(st.storageKey(), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) ListStates() ([]*EntityState, error) {
	var states []*EntityState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStates)
		if b == nil {
			return nil // no bucket = no states
		}
		states = make([]*EntityState, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var st EntityState
			if err := json.Unmarshal(v, &st); err != nil {
				return err
			}
			states = append(states, &st)
			return nil
		})
	})
	return states, err
}

// DeleteDeviceStates removes every state stored for address.
func (s *BoltStore) DeleteDeviceStates(address string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStates)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketStates)
		}
		prefix := []byte(address + "/")
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) SaveDiscovered(dev *DiscoveredDevice) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDiscovered)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDiscovered)
		}
		data, err := json.Marshal(dev)
		if err != nil {
			return err
		}
		return b.Put([]byte(dev.Address), data)
	})
}

func (s *BoltStore) GetDiscovered(address string) (*DiscoveredDevice, error) {
	var dev DiscoveredDevice
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDiscovered)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDiscovered)
		}
		data := b.Get([]byte(address))
		if data == nil {
			return fmt.Errorf("discovered device %s: %w", address, ErrNotFound)
		}
		return json.Unmarshal(data, &dev)
	})
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *BoltStore) ListDiscovered() ([]*DiscoveredDevice, error) {
	var devices []*DiscoveredDevice
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDiscovered)
		if b == nil {
			return nil
		}
		devices = make([]*DiscoveredDevice, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var dev DiscoveredDevice
			if err := json.Unmarshal(v, &dev); err != nil {
				return err
			}
			devices = append(devices, &dev)
			return nil
		})
	})
	return devices, err
}

func (s *BoltStore) UpdateDiscovered(address string, fn func(dev *DiscoveredDevice) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDiscovered)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketDiscovered)
		}
		data := b.Get([]byte(address))
		if data == nil {
			return fmt.Errorf("discovered device %s: %w", address, ErrNotFound)
		}
		var dev DiscoveredDevice
		if err := json.Unmarshal(data, &dev); err != nil {
			return err
		}
		if err := fn(&dev); err != nil {
			return err
		}
		out, err := json.Marshal(&dev)
		if err != nil {
			return err
		}
		return b.Put([]byte(address), out)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
