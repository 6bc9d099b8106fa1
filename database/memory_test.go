package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfallmann/conf-central/model"
)

func newConference(t *testing.T, s Store, organizer, name, city string, seats int, topics ...string) *model.Conference {
	t.Helper()
	ctx := context.Background()
	parent := model.ProfileKey(organizer)
	id, err := s.AllocateID(ctx, model.KindConference, parent)
	require.NoError(t, err)
	conf := &model.Conference{
		Key:             model.NewIDKey(model.KindConference, id, parent),
		Name:            name,
		OrganizerUserID: organizer,
		City:            city,
		Topics:          topics,
		MaxAttendees:    seats,
		SeatsAvailable:  seats,
	}
	require.NoError(t, s.Put(ctx, conf))
	return conf
}

func TestMemoryStore_GetPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	conf := newConference(t, s, "alice", "GopherCon", "Berlin", 10, "Go")
	conf.StartDate = start
	conf.Month = 5
	require.NoError(t, s.Put(ctx, conf))

	var got model.Conference
	require.NoError(t, s.Get(ctx, conf.Key, &got))
	assert.Equal(t, "GopherCon", got.Name)
	assert.Equal(t, []string{"Go"}, got.Topics)
	assert.True(t, start.Equal(got.StartDate))
	assert.True(t, conf.Key.Equal(got.Key))

	err := s.Get(ctx, model.NewIDKey(model.KindConference, 999, model.ProfileKey("alice")), &got)
	assert.ErrorIs(t, err, ErrNoSuchEntity)

	err = s.Put(ctx, &model.Conference{Key: model.NewIDKey(model.KindConference, 0, nil)})
	assert.ErrorIs(t, err, ErrIncompleteKey)
}

func TestMemoryStore_StoredCopyIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	conf := newConference(t, s, "alice", "GopherCon", "Berlin", 10, "Go")

	conf.Topics[0] = "Rust"

	confs, err := GetAll(ctx, s, NewQuery(model.KindConference).Filter("topics", Equal, "Go"), func() *model.Conference { return new(model.Conference) })
	require.NoError(t, err)
	assert.Len(t, confs, 1)
}

func TestMemoryStore_AllocateID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	alice := model.ProfileKey("alice")
	bob := model.ProfileKey("bob")

	first, err := s.AllocateID(ctx, model.KindConference, alice)
	require.NoError(t, err)
	second, err := s.AllocateID(ctx, model.KindConference, alice)
	require.NoError(t, err)
	other, err := s.AllocateID(ctx, model.KindConference, bob)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Positive(t, first)
	assert.Positive(t, other)
}

func TestMemoryStore_Query(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	newConference(t, s, "alice", "Zeta", "London", 3, "Go", "Cloud")
	newConference(t, s, "alice", "Alpha", "Paris", 20, "Web")
	newConference(t, s, "bob", "Beta", "London", 5, "Go")
	newConference(t, s, "bob", "Gamma", "London", 0)

	newConf := func() *model.Conference { return new(model.Conference) }
	names := func(confs []*model.Conference) []string {
		var out []string
		for _, c := range confs {
			out = append(out, c.Name)
		}
		return out
	}

	tests := []struct {
		description string
		query       *Query
		expected    []string
	}{
		{
			description: "order by name",
			query:       NewQuery(model.KindConference).Order("name"),
			expected:    []string{"Alpha", "Beta", "Gamma", "Zeta"},
		},
		{
			description: "descending order",
			query:       NewQuery(model.KindConference).Order("-name"),
			expected:    []string{"Zeta", "Gamma", "Beta", "Alpha"},
		},
		{
			description: "equality on a list property",
			query:       NewQuery(model.KindConference).Filter("topics", Equal, "Go").Order("name"),
			expected:    []string{"Beta", "Zeta"},
		},
		{
			description: "range filter with int values",
			query: NewQuery(model.KindConference).
				Filter("seatsAvailable", GreaterThan, 0).
				Filter("seatsAvailable", LessOrEqual, 5).
				Order("seatsAvailable").Order("name"),
			expected: []string{"Zeta", "Beta"},
		},
		{
			description: "not equal",
			query:       NewQuery(model.KindConference).Filter("city", NotEqual, "London").Order("name"),
			expected:    []string{"Alpha"},
		},
		{
			description: "ancestor",
			query:       NewQuery(model.KindConference).Ancestor(model.ProfileKey("bob")).Order("name"),
			expected:    []string{"Beta", "Gamma"},
		},
		{
			description: "filter on a missing property never matches",
			query:       NewQuery(model.KindConference).Filter("startDate", GreaterThan, time.Time{}),
			expected:    nil,
		},
		{
			description: "limit",
			query:       NewQuery(model.KindConference).Order("name").Limit(2),
			expected:    []string{"Alpha", "Beta"},
		},
		{
			description: "other kinds are ignored",
			query:       NewQuery(model.KindSession),
			expected:    nil,
		},
	}

	for _, test := range tests {
		confs, err := GetAll(ctx, s, test.query, newConf)
		require.NoErrorf(t, err, test.description)
		assert.Equalf(t, test.expected, names(confs), test.description)
	}
}

func TestMemoryStore_QueryIsLazyAndRestartable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	q := NewQuery(model.KindConference).Order("name")

	it := s.Run(ctx, q)
	newConference(t, s, "alice", "Late", "Berlin", 1)

	var conf model.Conference
	require.NoError(t, it.Next(&conf), "entities written before the first Next are visible")
	assert.Equal(t, "Late", conf.Name)
	assert.ErrorIs(t, it.Next(&conf), Done)

	again, err := GetAll(ctx, s, q, func() *model.Conference { return new(model.Conference) })
	require.NoError(t, err)
	assert.Len(t, again, 1)
}

func TestMemoryStore_QueryBuildersDoNotShareState(t *testing.T) {
	base := NewQuery(model.KindConference).Filter("city", Equal, "London")
	a := base.Order("name")
	b := base.Filter("month", Equal, 6)

	assert.Len(t, base.Filters(), 1)
	assert.Empty(t, base.Orders())
	assert.Len(t, a.Filters(), 1)
	assert.Len(t, b.Filters(), 2)
	assert.Equal(t, int64(6), b.Filters()[1].Value)
}

func TestMemoryStore_Transaction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	conf := newConference(t, s, "alice", "GopherCon", "Berlin", 10)

	err := s.RunInTransaction(ctx, func(tx Transaction) error {
		var c model.Conference
		if err := tx.Get(conf.Key, &c); err != nil {
			return err
		}
		c.SeatsAvailable--
		return tx.Put(&c)
	})
	require.NoError(t, err)

	var got model.Conference
	require.NoError(t, s.Get(ctx, conf.Key, &got))
	assert.Equal(t, 9, got.SeatsAvailable)
}

func TestMemoryStore_TransactionErrorDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	conf := newConference(t, s, "alice", "GopherCon", "Berlin", 10)

	err := s.RunInTransaction(ctx, func(tx Transaction) error {
		var c model.Conference
		require.NoError(t, tx.Get(conf.Key, &c))
		c.SeatsAvailable = 0
		require.NoError(t, tx.Put(&c))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var got model.Conference
	require.NoError(t, s.Get(ctx, conf.Key, &got))
	assert.Equal(t, 10, got.SeatsAvailable)
}

func TestMemoryStore_TransactionContention(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	conf := newConference(t, s, "alice", "GopherCon", "Berlin", 10)

	err := s.RunInTransaction(ctx, func(tx Transaction) error {
		var c model.Conference
		require.NoError(t, tx.Get(conf.Key, &c))

		// a concurrent writer commits to the same group
		other := c
		other.SeatsAvailable = 1
		require.NoError(t, s.Put(ctx, &other))

		c.SeatsAvailable--
		return tx.Put(&c)
	})
	assert.ErrorIs(t, err, ErrContention)

	var got model.Conference
	require.NoError(t, s.Get(ctx, conf.Key, &got))
	assert.Equal(t, 1, got.SeatsAvailable)
}

func TestMemoryStore_TransactionGroups(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	conf := newConference(t, s, "alice", "GopherCon", "Berlin", 10)
	require.NoError(t, s.Put(ctx, &model.Profile{UserID: "bob"}))

	touchBoth := func(tx Transaction) error {
		var p model.Profile
		if err := tx.Get(model.ProfileKey("bob"), &p); err != nil {
			return err
		}
		var c model.Conference
		return tx.Get(conf.Key, &c)
	}

	assert.ErrorIs(t, s.RunInTransaction(ctx, touchBoth), ErrCrossGroup)
	assert.NoError(t, s.RunInTransaction(ctx, touchBoth, CrossGroup()))

	err := s.RunInTransaction(ctx, func(tx Transaction) error {
		for i := 0; i <= MaxTransactionGroups; i++ {
			var p model.Profile
			err := tx.Get(model.ProfileKey(string(rune('a'+i))), &p)
			if err != nil && err != ErrNoSuchEntity {
				return err
			}
		}
		return nil
	}, CrossGroup())
	assert.ErrorIs(t, err, ErrTooManyGroups)
}

func TestMemoryStore_TransactionReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.RunInTransaction(ctx, func(tx Transaction) error {
		require.NoError(t, tx.Put(&model.Profile{UserID: "carol", DisplayName: "Carol"}))
		var p model.Profile
		require.NoError(t, tx.Get(model.ProfileKey("carol"), &p))
		assert.Equal(t, "Carol", p.DisplayName)
		return nil
	})
	require.NoError(t, err)

	var p model.Profile
	require.NoError(t, s.Get(ctx, model.ProfileKey("carol"), &p))
	assert.Equal(t, "carol", p.UserID)
}
