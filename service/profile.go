package service

import (
	"context"
	stderrors "errors"

	"github.com/sfallmann/conf-central/database"
	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

// loadProfile reads the caller's profile inside tx, creating it on first access.
func loadProfile(tx database.Transaction, user *model.User) (*model.Profile, error) {
	p := new(model.Profile)
	err := tx.Get(model.ProfileKey(user.ID), p)
	if stderrors.Is(err, database.ErrNoSuchEntity) {
		p = newProfile(user)
		return p, tx.Put(p)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// profile returns the caller's profile, creating it on first access.
func (s *Service) profile(ctx context.Context, user *model.User) (*model.Profile, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	var p *model.Profile
	err := s.runInTransaction(ctx, func(tx database.Transaction) error {
		var err error
		p, err = loadProfile(tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// displayName returns the display name of a user's profile, or "" when the
// user never created one.
func (s *Service) displayName(ctx context.Context, userID string) (string, error) {
	var p model.Profile
	err := s.store.Get(ctx, model.ProfileKey(userID), &p)
	if stderrors.Is(err, database.ErrNoSuchEntity) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return p.DisplayName, nil
}

func (s *Service) GetProfile(ctx context.Context, user *model.User) (model.ProfileForm, error) {
	p, err := s.profile(ctx, user)
	if err != nil {
		return model.ProfileForm{}, err
	}
	return profileToForm(p), nil
}

// SaveProfile updates the user editable fields present in form.
func (s *Service) SaveProfile(ctx context.Context, user *model.User, form model.ProfileMiniForm) (model.ProfileForm, error) {
	if err := requireUser(user); err != nil {
		return model.ProfileForm{}, err
	}
	if form.TeeShirtSize != "" && !form.TeeShirtSize.Valid() {
		return model.ProfileForm{}, errors.Newf(errors.KindValidation, "Unknown teeShirtSize %s", form.TeeShirtSize)
	}

	var p *model.Profile
	err := s.runInTransaction(ctx, func(tx database.Transaction) error {
		var err error
		if p, err = loadProfile(tx, user); err != nil {
			return err
		}
		if form.DisplayName != "" {
			p.DisplayName = form.DisplayName
		}
		if form.TeeShirtSize != "" {
			p.TeeShirtSize = form.TeeShirtSize
		}
		return tx.Put(p)
	})
	if err != nil {
		return model.ProfileForm{}, err
	}
	return profileToForm(p), nil
}
