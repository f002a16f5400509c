package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Generic append-only time-series helpers shared by the prediction log
// and metric tables. Entries sort by embedded timestamp, so concurrent
// writers only ever race on insertion order of fresh rows and
// "most recent" reads stay well defined.

func appendSeries[T any](s *Store, bucketName []byte, modelID string, ts time.Time, entry T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry for bucket %s: %w", bucketName, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		seq := s.seq + 1
		key := makeSeriesKey(modelID, ts, seq)
		if err := tx.Bucket(bucketName).Put(key, value); err != nil {
			return err
		}
		if err := s.persistSequence(tx, seq); err != nil {
			return err
		}
		s.seq = seq
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append to bucket %s: %w", bucketName, err)
	}
	return nil
}

// appendSeriesBatch writes all entries in one transaction. On failure
// nothing is persisted and the sequence is unchanged.
func appendSeriesBatch[T any](s *Store, bucketName []byte, modelID string, timestamps []time.Time, entries []T) error {
	if len(entries) != len(timestamps) {
		return fmt.Errorf("timestamps/entries length mismatch: %d != %d", len(timestamps), len(entries))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		seq := s.seq

		for i, entry := range entries {
			seq++
			value, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("failed to marshal entry at index %d: %w", i, err)
			}
			key := makeSeriesKey(modelID, timestamps[i], seq)
			if err := bucket.Put(key, value); err != nil {
				return fmt.Errorf("failed to put entry at index %d: %w", i, err)
			}
		}

		if err := s.persistSequence(tx, seq); err != nil {
			return err
		}
		s.seq = seq
		return nil
	})
	if err != nil {
		return &TransactionError{Op: fmt.Sprintf("append_batch_%s", bucketName), Err: err}
	}
	return nil
}

// earliestSeries returns up to limit entries in ascending time order.
// limit <= 0 means no limit.
func earliestSeries[T any](s *Store, bucketName []byte, modelID string, limit int) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []T
	prefix := seriesPrefix(modelID)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var entry T
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupt entry in bucket %s: %w", bucketName, err)
			}
			results = append(results, entry)
			if limit > 0 && len(results) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// latestSeries returns up to limit entries in descending time order
// (most recent first). limit <= 0 means no limit.
func latestSeries[T any](s *Store, bucketName []byte, modelID string, limit int) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []T
	prefix := seriesPrefix(modelID)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()

		// Position after the last key with our prefix, then walk back.
		upper := append(append([]byte(nil), prefix...), 0xff)
		k, v := c.Seek(upper)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}

		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
			var entry T
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupt entry in bucket %s: %w", bucketName, err)
			}
			results = append(results, entry)
			if limit > 0 && len(results) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func countSeries(s *Store, bucketName []byte, modelID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	prefix := seriesPrefix(modelID)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// deleteSeries removes all entries for a model from one bucket. Used by
// the administrative reset path only.
func deleteSeries(s *Store, bucketName []byte, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := seriesPrefix(modelID)

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		c := bucket.Cursor()

		var toDelete [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, key := range toDelete {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
