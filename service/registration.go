package service

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/sfallmann/conf-central/database"
	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

func (s *Service) RegisterForConference(ctx context.Context, user *model.User, websafeConferenceKey string) (model.BooleanMessage, error) {
	return s.conferenceRegistration(ctx, user, websafeConferenceKey, true)
}

func (s *Service) UnregisterFromConference(ctx context.Context, user *model.User, websafeConferenceKey string) (model.BooleanMessage, error) {
	return s.conferenceRegistration(ctx, user, websafeConferenceKey, false)
}

// conferenceRegistration moves one seat between the conference and the
// caller's profile. Both entity groups change in a single transaction.
//
// Unregistering gives the seat back without capping seatsAvailable at
// maxAttendees.
func (s *Service) conferenceRegistration(ctx context.Context, user *model.User, websafeConferenceKey string, register bool) (model.BooleanMessage, error) {
	if err := requireUser(user); err != nil {
		return model.BooleanMessage{}, err
	}
	confKey, err := decodeKey(websafeConferenceKey, model.KindConference)
	if err != nil {
		return model.BooleanMessage{}, err
	}
	websafe := confKey.Encode()

	var result bool
	err = s.runInTransaction(ctx, func(tx database.Transaction) error {
		result = false
		p, err := loadProfile(tx, user)
		if err != nil {
			return err
		}
		conf := new(model.Conference)
		if err := tx.Get(confKey, conf); err != nil {
			return lookupError(err, model.KindConference)
		}

		registered := slices.Contains(p.ConferenceKeysToAttend, websafe)
		switch {
		case register && registered:
			return errors.New(errors.KindConflict, "You have already registered for this conference")
		case register && conf.SeatsAvailable <= 0:
			return errors.New(errors.KindConflict, "There are no seats available.")
		case register:
			p.ConferenceKeysToAttend = append(p.ConferenceKeysToAttend, websafe)
			conf.SeatsAvailable--
			result = true
		case registered:
			i := slices.Index(p.ConferenceKeysToAttend, websafe)
			p.ConferenceKeysToAttend = slices.Delete(p.ConferenceKeysToAttend, i, i+1)
			conf.SeatsAvailable++
			result = true
		default:
			return nil
		}

		if err := tx.Put(p); err != nil {
			return err
		}
		return tx.Put(conf)
	}, database.CrossGroup())
	if err != nil {
		return model.BooleanMessage{}, err
	}

	zerolog.Ctx(ctx).Info().
		Str("conference", confKey.String()).
		Bool("register", register).
		Bool("changed", result).
		Msg("Registration processed")
	return model.BooleanMessage{Data: result}, nil
}
