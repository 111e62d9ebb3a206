// Package cache persists expanded transition graphs, flow assignments,
// and train/test splits in a badger store, so the expensive state
// enumeration and batch expansion run once per configuration.
package cache

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lazaratan/gflownet-generalization/colgraph"
	"github.com/lazaratan/gflownet-generalization/env"
	"github.com/lazaratan/gflownet-generalization/gfn"
	"github.com/lazaratan/gflownet-generalization/mdp"
	"github.com/lazaratan/gflownet-generalization/split"
	"github.com/lazaratan/gflownet-generalization/universe"
)

// schemaVersion tags every persisted graph. Loading a store written by an
// incompatible layout fails fast instead of mis-decoding.
const schemaVersion = 1

var (
	keyMeta   = []byte("meta")
	keyStates = []byte("states")
	keyFlow   = []byte("flow")
)

func keyBatch(i int) []byte {
	return []byte(fmt.Sprintf("batch/%05d", i))
}

func keySplit(kind string, ratio float64, seed int64) []byte {
	return []byte(fmt.Sprintf("split/%s/%g/%d", kind, ratio, seed))
}

// Store is a single-writer persistent cache. An empty path opens an
// in-memory store, handy for tests and one-shot runs.
type Store struct {
	db *badger.DB
}

func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.DetectConflicts = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "cache: open")
	}
	s := &Store{db: db}
	if err := s.checkVersion(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type metaRecord struct {
	Version   int
	MaxNodes  int
	NumColors int
	BatchSize int
	NumStates int
	NumEdges  int
	HasFlow   bool
}

// checkVersion rejects stores written under a different schema. A store
// with no meta record yet is fine.
func (s *Store) checkVersion() error {
	meta, err := s.loadMeta()
	if errors.Is(err, gfn.ErrCacheMissing) {
		return nil
	}
	if err != nil {
		return err
	}
	if meta.Version != schemaVersion {
		return errors.Wrapf(gfn.ErrCacheVersion,
			"store has v%d, this build reads v%d", meta.Version, schemaVersion)
	}
	return nil
}

func (s *Store) loadMeta() (*metaRecord, error) {
	var meta metaRecord
	if err := s.get(keyMeta, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SaveMDP persists the transition graph and, when non-nil, its flow
// assignment. Any previously saved graph is overwritten.
func (s *Store) SaveMDP(m *mdp.MDP, flow *mdp.FlowAssignment) error {
	meta := metaRecord{
		Version:   schemaVersion,
		MaxNodes:  m.Env.MaxNodes(),
		NumColors: m.Env.NumColors(),
		BatchSize: m.BatchSize,
		NumStates: m.NumStates(),
		NumEdges:  m.NumEdges,
		HasFlow:   flow != nil,
	}
	encodings := make([][]byte, m.NumStates())
	for id := range encodings {
		encodings[id] = m.Index.State(int32(id)).AppendEncoding(nil)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := setIn(txn, keyMeta, &meta); err != nil {
			return err
		}
		if err := setIn(txn, keyStates, encodings); err != nil {
			return err
		}
		for i, b := range m.Batches {
			if err := setIn(txn, keyBatch(i), b); err != nil {
				return err
			}
		}
		if flow != nil {
			return setIn(txn, keyFlow, flow)
		}
		return txn.Delete(keyFlow)
	})
	return errors.Wrap(err, "cache: save mdp")
}

// LoadMDP rebuilds the persisted transition graph. The returned flow
// assignment is nil when none was saved alongside it.
func (s *Store) LoadMDP() (*mdp.MDP, *mdp.FlowAssignment, error) {
	meta, err := s.loadMeta()
	if err != nil {
		return nil, nil, err
	}
	if meta.Version != schemaVersion {
		return nil, nil, errors.Wrapf(gfn.ErrCacheVersion,
			"store has v%d, this build reads v%d", meta.Version, schemaVersion)
	}

	var encodings [][]byte
	if err := s.get(keyStates, &encodings); err != nil {
		return nil, nil, err
	}
	if len(encodings) != meta.NumStates {
		return nil, nil, errors.Errorf("cache: %d states, meta says %d",
			len(encodings), meta.NumStates)
	}
	states := make([]*colgraph.Graph, len(encodings))
	for i, enc := range encodings {
		states[i] = colgraph.New(nil)
		if err := states[i].InitFromEncoding(enc); err != nil {
			return nil, nil, errors.Wrapf(err, "cache: state %d", i)
		}
	}

	e, err := env.New(meta.MaxNodes, meta.NumColors)
	if err != nil {
		return nil, nil, err
	}
	idx := universe.Reindex(states)

	numBatches := (meta.NumStates + meta.BatchSize - 1) / meta.BatchSize
	batches := make([]*mdp.CachedBatch, numBatches)
	for i := range batches {
		batches[i] = &mdp.CachedBatch{}
		if err := s.get(keyBatch(i), batches[i]); err != nil {
			return nil, nil, errors.Wrapf(err, "cache: batch %d", i)
		}
	}

	m, err := mdp.Restore(e, idx, batches, meta.BatchSize)
	if err != nil {
		return nil, nil, err
	}
	if m.NumEdges != meta.NumEdges {
		return nil, nil, errors.Errorf("cache: %d edges, meta says %d",
			m.NumEdges, meta.NumEdges)
	}

	if !meta.HasFlow {
		return m, nil, nil
	}
	var flow mdp.FlowAssignment
	if err := s.get(keyFlow, &flow); err != nil {
		return nil, nil, err
	}
	return m, &flow, nil
}

// SaveSplit persists a split under its generating parameters.
func (s *Store) SaveSplit(kind string, ratio float64, seed int64, sp *split.Split) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setIn(txn, keySplit(kind, ratio, seed), sp)
	})
	return errors.Wrap(err, "cache: save split")
}

// LoadSplit fetches the split saved under the given parameters, or
// ErrCacheMissing when it was never generated.
func (s *Store) LoadSplit(kind string, ratio float64, seed int64) (*split.Split, error) {
	var sp split.Split
	if err := s.get(keySplit(kind, ratio, seed), &sp); err != nil {
		return nil, err
	}
	return &sp, nil
}

func setIn(txn *badger.Txn, key []byte, v interface{}) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}

func (s *Store) get(key []byte, v interface{}) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			return msgpack.Unmarshal(raw, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errors.Wrapf(gfn.ErrCacheMissing, "key %q", key)
	}
	return errors.Wrapf(err, "cache: get %q", key)
}
