package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

var bucketDispatches = []byte("dispatches")

// ErrLocked is returned when another process holds the journal open.
var ErrLocked = errors.New("journal is locked by another process")

const openTimeout = time.Second

// Store is a bolt-backed journal. Keys are big-endian sequence numbers so cursor order
// is append order.
type Store struct {
	db         *bolt.DB
	maxEntries int
}

// Open opens or creates the journal at path. maxEntries <= 0 disables pruning.
func Open(path string, maxEntries int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("open journal %s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDispatches)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal bucket: %w", err)
	}
	return &Store{db: db, maxEntries: maxEntries}, nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores r under the next sequence number and prunes the oldest entries.
func (s *Store) Append(ctx context.Context, r Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDispatches)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		r.Seq = seq

		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}
		return s.prune(b, seq)
	})
	if err != nil {
		return Record{}, fmt.Errorf("append journal record: %w", err)
	}
	return r, nil
}

// prune deletes keys at or below newest-maxEntries. Keys are collected first since
// deleting under a live cursor skips entries.
func (s *Store) prune(b *bolt.Bucket, newest uint64) error {
	if s.maxEntries <= 0 || newest <= uint64(s.maxEntries) {
		return nil
	}
	cutoff := newest - uint64(s.maxEntries)

	var stale [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil && binary.BigEndian.Uint64(k) <= cutoff; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns everything.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDispatches).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode record %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return out, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
