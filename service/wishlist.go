package service

import (
	"context"
	stderrors "errors"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/sfallmann/conf-central/database"
	"github.com/sfallmann/conf-central/model"
)

const (
	wishlistAdded    = "Session added to wishlist!"
	wishlistPresent  = "Session already in wishlist!"
	wishlistDeleted  = "Session deleted from wishlist!"
	wishlistNotFound = "Session not in wishlist!"
)

// AddSessionToWishlist adds a session to the caller's wishlist. Adding a
// session twice leaves the wishlist unchanged.
func (s *Service) AddSessionToWishlist(ctx context.Context, user *model.User, websafeSessionKey string) (model.StringMessage, error) {
	return s.updateWishlist(ctx, user, websafeSessionKey, func(p *model.Profile, websafe string) (string, bool) {
		if slices.Contains(p.Wishlist, websafe) {
			return wishlistPresent, false
		}
		p.Wishlist = append(p.Wishlist, websafe)
		return wishlistAdded, true
	})
}

func (s *Service) DeleteSessionInWishlist(ctx context.Context, user *model.User, websafeSessionKey string) (model.StringMessage, error) {
	return s.updateWishlist(ctx, user, websafeSessionKey, func(p *model.Profile, websafe string) (string, bool) {
		i := slices.Index(p.Wishlist, websafe)
		if i < 0 {
			return wishlistNotFound, false
		}
		p.Wishlist = slices.Delete(p.Wishlist, i, i+1)
		return wishlistDeleted, true
	})
}

// updateWishlist checks that the session exists and then applies change to
// the caller's profile in a single-group transaction.
func (s *Service) updateWishlist(ctx context.Context, user *model.User, websafeSessionKey string, change func(p *model.Profile, websafe string) (string, bool)) (model.StringMessage, error) {
	if err := requireUser(user); err != nil {
		return model.StringMessage{}, err
	}
	session := new(model.Session)
	key, err := s.lookup(ctx, websafeSessionKey, model.KindSession, session)
	if err != nil {
		return model.StringMessage{}, err
	}
	websafe := key.Encode()

	var message string
	err = s.runInTransaction(ctx, func(tx database.Transaction) error {
		p, err := loadProfile(tx, user)
		if err != nil {
			return err
		}
		var changed bool
		if message, changed = change(p, websafe); !changed {
			return nil
		}
		return tx.Put(p)
	})
	if err != nil {
		return model.StringMessage{}, err
	}
	return model.StringMessage{Data: message}, nil
}

// GetSessionsInWishlist lists the sessions on the caller's wishlist.
// Sessions deleted since they were added are skipped.
func (s *Service) GetSessionsInWishlist(ctx context.Context, user *model.User) (model.SessionForms, error) {
	p, err := s.profile(ctx, user)
	if err != nil {
		return model.SessionForms{}, err
	}

	var sessions []*model.Session
	for _, websafe := range p.Wishlist {
		key, err := model.DecodeKey(websafe)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", websafe).Msg("Skipping malformed wishlist entry")
			continue
		}
		session := new(model.Session)
		err = s.store.Get(ctx, key, session)
		if stderrors.Is(err, database.ErrNoSuchEntity) {
			continue
		}
		if err != nil {
			return model.SessionForms{}, err
		}
		sessions = append(sessions, session)
	}
	return sessionsToForms(sessions), nil
}
