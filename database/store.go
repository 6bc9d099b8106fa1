package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sfallmann/conf-central/model"
)

var (
	// ErrNoSuchEntity is returned by Get when no entity is stored under the key.
	ErrNoSuchEntity = errors.New("database: no such entity")

	// ErrIncompleteKey is returned by Put for keys without an id.
	ErrIncompleteKey = errors.New("database: incomplete key")

	// ErrContention is returned when a transaction lost an optimistic race on
	// one of its entity groups. The whole transaction may be retried.
	ErrContention = errors.New("database: concurrent transaction on entity group")

	// ErrCrossGroup is returned when a transaction touches a second entity
	// group without the CrossGroup option.
	ErrCrossGroup = errors.New("database: cross-group transaction requires CrossGroup option")

	// ErrTooManyGroups is returned when a cross-group transaction exceeds
	// MaxTransactionGroups.
	ErrTooManyGroups = errors.New("database: too many entity groups in transaction")

	// Done is returned by Iterator.Next when the results are exhausted.
	Done = errors.New("database: no more items in iterator")
)

// MaxTransactionGroups bounds the entity groups a cross-group transaction may touch.
const MaxTransactionGroups = 25

// Entity is implemented by every storable model type.
type Entity interface {
	// EntityKey returns the complete key of the entity.
	EntityKey() *model.Key

	// SetEntityKey is called by the store after loading an entity.
	SetEntityKey(*model.Key)

	// Properties returns the indexed field values used by queries.
	Properties() model.Properties
}

// Store is the hierarchical entity store. Keys form parent/child chains and
// the root of a chain names the entity group used as the transaction unit.
type Store interface {
	// Get loads the entity stored under key into dst.
	Get(ctx context.Context, key *model.Key, dst Entity) error

	// Put writes e under its key, replacing any previous value.
	Put(ctx context.Context, e Entity) error

	// AllocateID reserves a new numeric id for kind under parent. Ids are
	// never handed out twice.
	AllocateID(ctx context.Context, kind string, parent *model.Key) (int64, error)

	// Run prepares q for iteration. No work happens until the first Next.
	Run(ctx context.Context, q *Query) Iterator

	// RunInTransaction calls fn with a transaction and commits it when fn
	// returns nil. It returns ErrContention when another writer changed one of
	// the touched entity groups first.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error, opts ...TransactionOption) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Transaction is the view of the store inside RunInTransaction.
type Transaction interface {
	Get(key *model.Key, dst Entity) error
	Put(e Entity) error
}

// Iterator yields query results one entity at a time.
type Iterator interface {
	// Next loads the next result into dst. It returns Done at the end.
	Next(dst Entity) error
}

type txOptions struct {
	crossGroup bool
}

// TransactionOption configures RunInTransaction.
type TransactionOption func(*txOptions)

// CrossGroup allows a transaction to span up to MaxTransactionGroups entity groups.
func CrossGroup() TransactionOption {
	return func(o *txOptions) { o.crossGroup = true }
}

func applyTxOptions(opts []TransactionOption) txOptions {
	var o txOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// groupSet tracks the entity groups a transaction has touched.
type groupSet struct {
	roots      map[string]struct{}
	crossGroup bool
}

func newGroupSet(o txOptions) *groupSet {
	return &groupSet{roots: make(map[string]struct{}), crossGroup: o.crossGroup}
}

// enter records the group of key and enforces the group limits. It reports
// whether the group is new to the transaction.
func (g *groupSet) enter(key *model.Key) (string, bool, error) {
	root := key.Root().Encode()
	if _, ok := g.roots[root]; ok {
		return root, false, nil
	}
	switch {
	case len(g.roots) >= 1 && !g.crossGroup:
		return root, false, ErrCrossGroup
	case len(g.roots) >= MaxTransactionGroups:
		return root, false, ErrTooManyGroups
	}
	g.roots[root] = struct{}{}
	return root, true, nil
}

func checkKey(key *model.Key) error {
	if key == nil || key.Incomplete() {
		return ErrIncompleteKey
	}
	return nil
}

// GetAll drains the results of q into freshly allocated entities.
func GetAll[E Entity](ctx context.Context, s Store, q *Query, newEntity func() E) ([]E, error) {
	it := s.Run(ctx, q)
	var out []E
	for {
		e := newEntity()
		err := it.Next(e)
		if errors.Is(err, Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
}

// newEntity returns an empty entity for kind, used when a backend has to
// rebuild properties from stored bytes.
func newEntity(kind string) (Entity, error) {
	switch kind {
	case model.KindProfile:
		return new(model.Profile), nil
	case model.KindConference:
		return new(model.Conference), nil
	case model.KindSession:
		return new(model.Session), nil
	}
	return nil, fmt.Errorf("database: unknown kind %q", kind)
}

// normalize converts filter values to the types Properties use.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint32:
		return int64(x)
	case time.Time:
		return x.UTC()
	}
	return v
}
