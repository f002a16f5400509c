package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/modelgate/modelgate/types"
	"go.etcd.io/bbolt"
)

// Bucket names in bbolt
var (
	bucketModels   = []byte("models")
	bucketPolicies = []byte("policies")
	bucketLogs     = []byte("prediction_logs")
	bucketDrift    = []byte("drift_metrics")
	bucketFairness = []byte("fairness_metrics")
	bucketRisk     = []byte("risk_history")
	bucketMeta     = []byte("meta")
)

// Store is the bbolt-backed governance store. Metric tables are
// append-only time series keyed by (model, timestamp, sequence); the
// model registry is the only mutable cell and is guarded per model.
type Store struct {
	mu sync.RWMutex

	// In-memory index for fast model lookups
	index *btree.BTreeG[*modelEntry]

	// On-disk storage
	db *bbolt.DB

	// Monotonic sequence for series key uniqueness
	seq int64

	// Per-model locks serializing evaluate-then-write-status
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	dir string
}

type modelEntry struct {
	model types.Model
}

// Open creates or opens a store in the specified directory
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "modelgate.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			bucketModels, bucketPolicies, bucketLogs,
			bucketDrift, bucketFairness, bucketRisk, bucketMeta,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		index: btree.NewG[*modelEntry](32, func(a, b *modelEntry) bool {
			return a.model.ID < b.model.ID
		}),
		db:    db,
		locks: make(map[string]*sync.Mutex),
		dir:   dir,
	}

	s.loadSequence()

	if err := s.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to rebuild model index: %w", err)
	}

	return s, nil
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

// WithModelLock runs fn while holding the lock for modelID. Governance
// evaluation and deployment decisions for the same model serialize here
// so the status cell cannot suffer a lost update.
func (s *Store) WithModelLock(modelID string, fn func() error) error {
	mu := s.modelLock(modelID)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

func (s *Store) modelLock(modelID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[modelID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[modelID] = mu
	}
	return mu
}

// Stats returns operational counters for the store
func (s *Store) Stats() (modelCount int, seq int64, dbSizeBytes int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var size int64
	_ = s.db.View(func(tx *bbolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return s.index.Len(), s.seq, size
}

// nextSeq returns a fresh sequence number. Caller must hold s.mu.
func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *Store) loadSequence() {
	_ = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return nil
		}
		if data := bucket.Get([]byte("sequence")); data != nil && len(data) == 8 {
			s.seq = int64(binary.BigEndian.Uint64(data)) // #nosec G115 -- sequence is always positive
		}
		return nil
	})
}

func (s *Store) persistSequence(tx *bbolt.Tx, seq int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(seq)) //nolint:gosec // sequence is always positive
	return tx.Bucket(bucketMeta).Put([]byte("sequence"), buf)
}

func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketModels)
		return bucket.ForEach(func(_, v []byte) error {
			var m types.Model
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("corrupt model record: %w", err)
			}
			s.index.ReplaceOrInsert(&modelEntry{model: m})
			return nil
		})
	})
}

// Series keys order entries by timestamp first so "latest" reads are a
// reverse prefix scan. Layout: modelID, 0x00, timestamp (8), sequence (8).

func makeSeriesKey(modelID string, ts time.Time, seq int64) []byte {
	key := make([]byte, 0, len(modelID)+17)
	key = append(key, modelID...)
	key = append(key, 0x00)
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(ts.UnixNano())) //nolint:gosec // timestamps are positive
	binary.BigEndian.PutUint64(buf[8:16], uint64(seq))          //nolint:gosec // sequence is positive
	return append(key, buf[:]...)
}

func seriesPrefix(modelID string) []byte {
	prefix := make([]byte, 0, len(modelID)+1)
	prefix = append(prefix, modelID...)
	return append(prefix, 0x00)
}
