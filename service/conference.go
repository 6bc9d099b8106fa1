package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sfallmann/conf-central/database"
	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
	"github.com/sfallmann/conf-central/tasks"
)

func newConferenceEntity() *model.Conference { return new(model.Conference) }

// CreateConference stores a new conference owned by the caller and queues
// the confirmation email.
func (s *Service) CreateConference(ctx context.Context, user *model.User, form model.ConferenceForm) (model.ConferenceForm, error) {
	if err := requireUser(user); err != nil {
		return model.ConferenceForm{}, err
	}
	if form.Name == "" {
		return model.ConferenceForm{}, errors.New(errors.KindValidation, "Conference 'name' field required")
	}

	conf, err := conferenceFromForm(form)
	if err != nil {
		return model.ConferenceForm{}, err
	}
	conf.OrganizerUserID = user.ID

	organizer, err := s.profile(ctx, user)
	if err != nil {
		return model.ConferenceForm{}, err
	}

	parent := model.ProfileKey(user.ID)
	id, err := s.store.AllocateID(ctx, model.KindConference, parent)
	if err != nil {
		return model.ConferenceForm{}, fmt.Errorf("allocate conference id: %w", err)
	}
	conf.Key = model.NewIDKey(model.KindConference, id, parent)
	if err := s.store.Put(ctx, conf); err != nil {
		return model.ConferenceForm{}, fmt.Errorf("store conference: %w", err)
	}

	created := conferenceToForm(conf, organizer.DisplayName)
	zerolog.Ctx(ctx).Info().Str("conference", conf.Key.String()).Msg("Conference created")

	s.enqueue(ctx, tasks.SendConfirmationEmail, map[string]string{
		"email":          user.Email,
		"conferenceInfo": conferenceInfo(created),
	})
	return created, nil
}

// conferenceInfo renders a conference for the confirmation email.
func conferenceInfo(form model.ConferenceForm) string {
	info, err := json.MarshalIndent(form, "", "	")
	if err != nil {
		return form.Name
	}
	return string(info)
}

// UpdateConference applies the fields present in form to a conference the
// caller organizes.
func (s *Service) UpdateConference(ctx context.Context, user *model.User, websafeKey string, form model.ConferenceForm) (model.ConferenceForm, error) {
	if err := requireUser(user); err != nil {
		return model.ConferenceForm{}, err
	}
	key, err := decodeKey(websafeKey, model.KindConference)
	if err != nil {
		return model.ConferenceForm{}, err
	}

	var updated model.ConferenceForm
	// The organizer profile is the root of the conference key, so both reads
	// stay in one entity group.
	err = s.runInTransaction(ctx, func(tx database.Transaction) error {
		conf := new(model.Conference)
		if err := tx.Get(key, conf); err != nil {
			return lookupError(err, model.KindConference)
		}
		if conf.OrganizerUserID != user.ID {
			return errors.New(errors.KindAuthorization, "Only the owner can update the conference.")
		}
		if err := updateConferenceFromForm(conf, form); err != nil {
			return err
		}
		if err := tx.Put(conf); err != nil {
			return err
		}

		var organizer model.Profile
		err := tx.Get(model.ProfileKey(conf.OrganizerUserID), &organizer)
		if err != nil && !stderrors.Is(err, database.ErrNoSuchEntity) {
			return err
		}
		updated = conferenceToForm(conf, organizer.DisplayName)
		return nil
	})
	if err != nil {
		return model.ConferenceForm{}, err
	}
	return updated, nil
}

func (s *Service) GetConference(ctx context.Context, websafeKey string) (model.ConferenceForm, error) {
	conf := new(model.Conference)
	if _, err := s.lookup(ctx, websafeKey, model.KindConference, conf); err != nil {
		return model.ConferenceForm{}, err
	}
	name, err := s.displayName(ctx, conf.OrganizerUserID)
	if err != nil {
		return model.ConferenceForm{}, err
	}
	return conferenceToForm(conf, name), nil
}

// GetConferencesCreated lists the conferences organized by the caller.
func (s *Service) GetConferencesCreated(ctx context.Context, user *model.User) (model.ConferenceForms, error) {
	if err := requireUser(user); err != nil {
		return model.ConferenceForms{}, err
	}
	q := database.NewQuery(model.KindConference).Ancestor(model.ProfileKey(user.ID))
	confs, err := database.GetAll(ctx, s.store, q, newConferenceEntity)
	if err != nil {
		return model.ConferenceForms{}, err
	}
	return s.conferenceForms(ctx, confs)
}

// QueryConferences runs the client filters through the query builder.
func (s *Service) QueryConferences(ctx context.Context, forms model.ConferenceQueryForms) (model.ConferenceForms, error) {
	q, err := BuildConferenceQuery(forms.Filters)
	if err != nil {
		return model.ConferenceForms{}, err
	}
	confs, err := database.GetAll(ctx, s.store, q, newConferenceEntity)
	if err != nil {
		return model.ConferenceForms{}, err
	}
	return s.conferenceForms(ctx, confs)
}

// GetConferencesToAttend lists the conferences the caller registered for.
// Conferences deleted since registration are skipped.
func (s *Service) GetConferencesToAttend(ctx context.Context, user *model.User) (model.ConferenceForms, error) {
	p, err := s.profile(ctx, user)
	if err != nil {
		return model.ConferenceForms{}, err
	}

	var confs []*model.Conference
	for _, websafe := range p.ConferenceKeysToAttend {
		key, err := model.DecodeKey(websafe)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", websafe).Msg("Skipping malformed registration")
			continue
		}
		conf := new(model.Conference)
		err = s.store.Get(ctx, key, conf)
		if stderrors.Is(err, database.ErrNoSuchEntity) {
			continue
		}
		if err != nil {
			return model.ConferenceForms{}, err
		}
		confs = append(confs, conf)
	}
	return s.conferenceForms(ctx, confs)
}

// conferenceForms maps conferences to forms, reading each organizer's
// display name once.
func (s *Service) conferenceForms(ctx context.Context, confs []*model.Conference) (model.ConferenceForms, error) {
	names := make(map[string]string)
	forms := model.ConferenceForms{Items: make([]model.ConferenceForm, 0, len(confs))}
	for _, conf := range confs {
		name, ok := names[conf.OrganizerUserID]
		if !ok {
			var err error
			if name, err = s.displayName(ctx, conf.OrganizerUserID); err != nil {
				return model.ConferenceForms{}, err
			}
			names[conf.OrganizerUserID] = name
		}
		forms.Items = append(forms.Items, conferenceToForm(conf, name))
	}
	return forms, nil
}
