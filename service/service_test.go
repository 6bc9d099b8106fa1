package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sfallmann/conf-central/cache"
	"github.com/sfallmann/conf-central/database"
	"github.com/sfallmann/conf-central/mail"
	"github.com/sfallmann/conf-central/model"
)

var (
	alice = &model.User{ID: "alice", Email: "alice@example.com", Nickname: "Alice"}
	bob   = &model.User{ID: "bob", Email: "bob@example.com", Nickname: "Bob"}
)

type queuedTask struct {
	name   string
	params map[string]string
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
	err   error
}

func (q *recordingQueue) Enqueue(ctx context.Context, name string, params map[string]string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, queuedTask{name: name, params: params})
	return nil
}

func (q *recordingQueue) named(name string) []queuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queuedTask
	for _, t := range q.tasks {
		if t.name == name {
			out = append(out, t)
		}
	}
	return out
}

type recordingMailer struct {
	sent []mail.Message
}

func (m *recordingMailer) Send(ctx context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

// contendedStore loses the first failures transactions to a concurrent writer.
type contendedStore struct {
	database.Store
	failures int
	calls    int
}

func (s *contendedStore) RunInTransaction(ctx context.Context, fn func(tx database.Transaction) error, opts ...database.TransactionOption) error {
	s.calls++
	if s.calls <= s.failures {
		return database.ErrContention
	}
	return s.Store.RunInTransaction(ctx, fn, opts...)
}

type fixture struct {
	svc    *Service
	store  *database.MemoryStore
	cache  *cache.MemoryCache
	queue  *recordingQueue
	mailer *recordingMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  database.NewMemoryStore(),
		cache:  cache.NewMemoryCache(),
		queue:  &recordingQueue{},
		mailer: &recordingMailer{},
	}
	f.svc = New(Deps{
		Store:  f.store,
		Cache:  f.cache,
		Queue:  f.queue,
		Mailer: f.mailer,
		Log:    zerolog.Nop(),
	})
	return f
}

func intPtr(n int) *int { return &n }

func (f *fixture) createConference(t *testing.T, user *model.User, form model.ConferenceForm) model.ConferenceForm {
	t.Helper()
	created, err := f.svc.CreateConference(context.Background(), user, form)
	require.NoError(t, err)
	require.NotEmpty(t, created.WebsafeKey)
	return created
}

func (f *fixture) createSession(t *testing.T, user *model.User, websafeConferenceKey string, form model.SessionForm) model.SessionForm {
	t.Helper()
	created, err := f.svc.CreateSession(context.Background(), user, websafeConferenceKey, form)
	require.NoError(t, err)
	return created
}

func (f *fixture) storedConference(t *testing.T, websafe string) *model.Conference {
	t.Helper()
	key, err := model.DecodeKey(websafe)
	require.NoError(t, err)
	conf := new(model.Conference)
	require.NoError(t, f.store.Get(context.Background(), key, conf))
	return conf
}

func (f *fixture) storedProfile(t *testing.T, userID string) *model.Profile {
	t.Helper()
	p := new(model.Profile)
	require.NoError(t, f.store.Get(context.Background(), model.ProfileKey(userID), p))
	return p
}
