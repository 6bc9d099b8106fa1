package database

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/sfallmann/conf-central/codec"
	"github.com/sfallmann/conf-central/model"
)

type record struct {
	key   *model.Key
	data  []byte
	props model.Properties
}

// MemoryStore keeps entities in process memory. Each entity group carries a
// version that every committed write bumps; transactions remember the version
// of each group they touch and fail with ErrContention if it moved before
// commit.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]record
	versions map[string]int64
	ids      map[string]int64

	// afterWrite runs with mu held after every write. A failed afterWrite
	// rolls the write back.
	afterWrite func() error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]record),
		versions: make(map[string]int64),
		ids:      make(map[string]int64),
	}
}

func newRecord(e Entity) (record, error) {
	key := e.EntityKey()
	if err := checkKey(key); err != nil {
		return record{}, err
	}
	data, err := codec.Marshal(e)
	if err != nil {
		return record{}, fmt.Errorf("database: encode %s: %w", key, err)
	}
	return record{key: key, data: data, props: copyProperties(e.Properties())}, nil
}

func copyProperties(props model.Properties) model.Properties {
	out := make(model.Properties, len(props))
	for k, v := range props {
		if list, ok := v.([]string); ok {
			out[k] = slices.Clone(list)
			continue
		}
		out[k] = normalize(v)
	}
	return out
}

func loadRecord(r record, dst Entity) error {
	if err := codec.Unmarshal(r.data, dst); err != nil {
		return fmt.Errorf("database: decode %s: %w", r.key, err)
	}
	dst.SetEntityKey(r.key)
	return nil
}

func (r record) candidate() candidate {
	return candidate{
		key:   r.key,
		props: r.props,
		load:  func(dst Entity) error { return loadRecord(r, dst) },
	}
}

func (s *MemoryStore) Get(ctx context.Context, key *model.Key, dst Entity) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.RLock()
	r, ok := s.records[key.Encode()]
	s.mu.RUnlock()
	if !ok {
		return ErrNoSuchEntity
	}
	return loadRecord(r, dst)
}

func (s *MemoryStore) Put(ctx context.Context, e Entity) error {
	r, err := newRecord(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply([]record{r})
}

// apply stores writes and bumps their group versions. Callers hold mu.
func (s *MemoryStore) apply(writes []record) error {
	prevRecords := make(map[string]*record, len(writes))
	prevVersions := make(map[string]int64, len(writes))
	for _, r := range writes {
		enc := r.key.Encode()
		if _, saved := prevRecords[enc]; !saved {
			if old, ok := s.records[enc]; ok {
				prevRecords[enc] = &old
			} else {
				prevRecords[enc] = nil
			}
		}
		root := r.key.Root().Encode()
		if _, saved := prevVersions[root]; !saved {
			prevVersions[root] = s.versions[root]
		}
		s.records[enc] = r
		s.versions[root]++
	}

	if err := s.notify(); err != nil {
		for enc, old := range prevRecords {
			if old == nil {
				delete(s.records, enc)
			} else {
				s.records[enc] = *old
			}
		}
		for root, v := range prevVersions {
			s.versions[root] = v
		}
		return err
	}
	return nil
}

func (s *MemoryStore) notify() error {
	if s.afterWrite == nil {
		return nil
	}
	return s.afterWrite()
}

func counterName(kind string, parent *model.Key) string {
	if parent == nil {
		return kind
	}
	return parent.Encode() + "|" + kind
}

func (s *MemoryStore) AllocateID(ctx context.Context, kind string, parent *model.Key) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := counterName(kind, parent)
	s.ids[name]++
	id := s.ids[name]
	if err := s.notify(); err != nil {
		s.ids[name]--
		return 0, err
	}
	return id, nil
}

func (s *MemoryStore) Run(ctx context.Context, q *Query) Iterator {
	return &memIterator{s: s, q: q}
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

type memIterator struct {
	s       *MemoryStore
	q       *Query
	started bool
	results []candidate
	pos     int
}

func (it *memIterator) Next(dst Entity) error {
	if !it.started {
		it.started = true
		it.s.mu.RLock()
		all := make([]candidate, 0, len(it.s.records))
		for _, r := range it.s.records {
			all = append(all, r.candidate())
		}
		it.s.mu.RUnlock()
		it.results = selectCandidates(it.q, all)
	}
	if it.pos >= len(it.results) {
		return Done
	}
	c := it.results[it.pos]
	it.pos++
	return c.load(dst)
}

func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx Transaction) error, opts ...TransactionOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		s:      s,
		groups: newGroupSet(applyTxOptions(opts)),
		seen:   make(map[string]int64),
		writes: make(map[string]int),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type memTx struct {
	s      *MemoryStore
	groups *groupSet
	seen   map[string]int64
	order  []record
	writes map[string]int
}

func (tx *memTx) enter(key *model.Key) error {
	root, isNew, err := tx.groups.enter(key)
	if err != nil {
		return err
	}
	if isNew {
		tx.s.mu.RLock()
		tx.seen[root] = tx.s.versions[root]
		tx.s.mu.RUnlock()
	}
	return nil
}

func (tx *memTx) Get(key *model.Key, dst Entity) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := tx.enter(key); err != nil {
		return err
	}
	enc := key.Encode()
	if i, ok := tx.writes[enc]; ok {
		return loadRecord(tx.order[i], dst)
	}
	tx.s.mu.RLock()
	r, ok := tx.s.records[enc]
	tx.s.mu.RUnlock()
	if !ok {
		return ErrNoSuchEntity
	}
	return loadRecord(r, dst)
}

func (tx *memTx) Put(e Entity) error {
	r, err := newRecord(e)
	if err != nil {
		return err
	}
	if err := tx.enter(r.key); err != nil {
		return err
	}
	enc := r.key.Encode()
	if i, ok := tx.writes[enc]; ok {
		tx.order[i] = r
		return nil
	}
	tx.writes[enc] = len(tx.order)
	tx.order = append(tx.order, r)
	return nil
}

func (tx *memTx) commit() error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for root, version := range tx.seen {
		if tx.s.versions[root] != version {
			return ErrContention
		}
	}
	if len(tx.order) == 0 {
		return nil
	}
	return tx.s.apply(tx.order)
}
