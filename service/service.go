// Package service implements the conference API on top of the entity store.
//
// It validates and defaults requests, enforces ownership, runs the
// registration and wishlist transactions and keeps the advisory cache
// entries (announcement, featured speaker) up to date. Transport concerns
// live in the handlers package.
package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sfallmann/conf-central/cache"
	"github.com/sfallmann/conf-central/database"
	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/mail"
	"github.com/sfallmann/conf-central/model"
	"github.com/sfallmann/conf-central/tasks"
)

// Cache keys of the derived values.
const (
	AnnouncementKey    = "RECENT_ANNOUNCEMENTS"
	FeaturedSpeakerKey = "FEATURED_SPEAKER"
)

const defaultTxAttempts = 3

// Deps are the collaborators of a Service.
type Deps struct {
	Store  database.Store
	Cache  cache.Cache
	Queue  tasks.Queue
	Mailer mail.Mailer
	Log    zerolog.Logger

	// MaxTxAttempts bounds how often a transaction is retried on contention.
	MaxTxAttempts int
}

type Service struct {
	store         database.Store
	cache         cache.Cache
	queue         tasks.Queue
	mailer        mail.Mailer
	log           zerolog.Logger
	maxTxAttempts int
}

func New(d Deps) *Service {
	if d.MaxTxAttempts < 1 {
		d.MaxTxAttempts = defaultTxAttempts
	}
	return &Service{
		store:         d.Store,
		cache:         d.Cache,
		queue:         d.Queue,
		mailer:        d.Mailer,
		log:           d.Log,
		maxTxAttempts: d.MaxTxAttempts,
	}
}

func requireUser(user *model.User) error {
	if user == nil || user.ID == "" {
		return errors.New(errors.KindAuth, "Authorization required")
	}
	return nil
}

// decodeKey parses a websafe key and checks that it names an entity of kind.
// The kind is checked before anything is read from the store.
func decodeKey(websafe, kind string) (*model.Key, error) {
	key, err := model.DecodeKey(websafe)
	if err != nil {
		return nil, errors.Wrap(errors.KindValidation,
			fmt.Sprintf("Problem with provided key %s. Key is malformed", websafe), err)
	}
	if key.Kind != kind {
		return nil, errors.Newf(errors.KindKindMismatch,
			"Problem with provided key %s. Provided key was for kind: %s", websafe, key.Kind)
	}
	return key, nil
}

// lookupError classifies a failed read of an entity referenced by a client.
func lookupError(err error, kind string) error {
	if stderrors.Is(err, database.ErrNoSuchEntity) {
		return errors.Newf(errors.KindNotFound, "A %s with provided key was not found", kind)
	}
	return errors.Wrap(errors.KindValidation, fmt.Sprintf("Problem with provided %s key", kind), err)
}

// lookup resolves a websafe key of the given kind into dst.
func (s *Service) lookup(ctx context.Context, websafe, kind string, dst database.Entity) (*model.Key, error) {
	key, err := decodeKey(websafe, kind)
	if err != nil {
		return nil, err
	}
	if err := s.store.Get(ctx, key, dst); err != nil {
		return nil, lookupError(err, kind)
	}
	return key, nil
}

// runInTransaction runs fn in a store transaction, retrying the whole
// function when the store reports contention.
func (s *Service) runInTransaction(ctx context.Context, fn func(tx database.Transaction) error, opts ...database.TransactionOption) error {
	var err error
	for attempt := 1; attempt <= s.maxTxAttempts; attempt++ {
		err = s.store.RunInTransaction(ctx, fn, opts...)
		if !stderrors.Is(err, database.ErrContention) {
			return err
		}
		zerolog.Ctx(ctx).Debug().Int("attempt", attempt).Msg("Transaction lost a race, retrying")
	}
	return errors.Wrap(errors.KindContention, "Too much contention on the requested entities, please retry", err)
}

// enqueue adds a task after the entity it refers to has been written. A
// failure is logged and never fails the request.
func (s *Service) enqueue(ctx context.Context, name string, params map[string]string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, name, params); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("task", name).Msg("Failed to enqueue task")
	}
}
