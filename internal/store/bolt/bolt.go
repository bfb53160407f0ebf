// Package bolt implements the binding registry on bbolt, for hosts without
// cgo. Records are stored as JSON in a single bucket keyed by binding key.
package bolt

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
	"github.com/roboticsapi/robotics-api-sub003/internal/store"
)

var bucket = []byte("bindings")

// Store is a bbolt binding registry. It mirrors store.Store.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open creates or opens the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &Store{db: db, logger: slog.Default()}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutBinding records a new binding. Writing an existing key keeps the
// first record.
func (s *Store) PutBinding(ctx context.Context, rec ir.BindingRecord) error {
	if rec.Key == "" {
		return fmt.Errorf("put binding: key is required")
	}
	js, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("put binding: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get([]byte(rec.Key)) != nil {
			s.logger.Debug("binding exists", "key", rec.Key)
			return nil
		}
		return b.Put([]byte(rec.Key), js)
	})
}

// ReleaseBinding marks the binding released at seq. Releasing twice keeps
// the first release seq.
func (s *Store) ReleaseBinding(ctx context.Context, key string, seq int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		rec, err := get(b, key)
		if err != nil {
			return fmt.Errorf("release binding %q: %w", key, err)
		}
		if !rec.Active() {
			return nil
		}
		rec.ReleasedSeq = seq
		js, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), js)
	})
}

// Binding returns the record stored under key.
func (s *Store) Binding(ctx context.Context, key string) (ir.BindingRecord, error) {
	var rec ir.BindingRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		rec, err = get(tx.Bucket(bucket), key)
		return err
	})
	return rec, err
}

// Bindings lists records ordered by creation seq, then key. With
// activeOnly, released bindings are skipped.
func (s *Store) Bindings(ctx context.Context, activeOnly bool) ([]ir.BindingRecord, error) {
	recs := []ir.BindingRecord{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, bs := c.First(); k != nil; k, bs = c.Next() {
			var rec ir.BindingRecord
			if err := json.Unmarshal(bs, &rec); err != nil {
				return fmt.Errorf("decode binding %q: %w", k, err)
			}
			if activeOnly && !rec.Active() {
				continue
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(recs, func(a, b ir.BindingRecord) int {
		return cmp.Or(cmp.Compare(a.CreatedSeq, b.CreatedSeq), cmp.Compare(a.Key, b.Key))
	})
	return recs, nil
}

func get(b *bolt.Bucket, key string) (ir.BindingRecord, error) {
	var rec ir.BindingRecord
	bs := b.Get([]byte(key))
	if bs == nil {
		return rec, store.ErrNotFound
	}
	if err := json.Unmarshal(bs, &rec); err != nil {
		return rec, fmt.Errorf("decode binding %q: %w", key, err)
	}
	return rec, nil
}
