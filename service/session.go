package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sfallmann/conf-central/database"
	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
	"github.com/sfallmann/conf-central/tasks"
)

func newSessionEntity() *model.Session { return new(model.Session) }

// CreateSession adds a session to a conference the caller organizes and
// queues the featured speaker recomputation.
func (s *Service) CreateSession(ctx context.Context, user *model.User, websafeConferenceKey string, form model.SessionForm) (model.SessionForm, error) {
	if err := requireUser(user); err != nil {
		return model.SessionForm{}, err
	}
	if form.Name == "" {
		return model.SessionForm{}, errors.New(errors.KindValidation, "Session 'name' field required")
	}

	conf := new(model.Conference)
	confKey, err := s.lookup(ctx, websafeConferenceKey, model.KindConference, conf)
	if err != nil {
		return model.SessionForm{}, err
	}
	if conf.OrganizerUserID != user.ID {
		return model.SessionForm{}, errors.New(errors.KindAuthorization, "Not authorized. Only conference owner can add sessions")
	}

	session, err := sessionFromForm(form)
	if err != nil {
		return model.SessionForm{}, err
	}
	id, err := s.store.AllocateID(ctx, model.KindSession, confKey)
	if err != nil {
		return model.SessionForm{}, fmt.Errorf("allocate session id: %w", err)
	}
	session.Key = model.NewIDKey(model.KindSession, id, confKey)
	if err := s.store.Put(ctx, session); err != nil {
		return model.SessionForm{}, fmt.Errorf("store session: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("session", session.Key.String()).Msg("Session created")

	s.enqueue(ctx, tasks.SetSpeaker, map[string]string{
		"speaker":              session.Speaker,
		"websafeConferenceKey": confKey.Encode(),
	})
	return sessionToForm(session), nil
}

// conferenceSessions runs q restricted to the sessions of one conference.
func (s *Service) conferenceSessions(ctx context.Context, websafeConferenceKey string, q *database.Query) (model.SessionForms, error) {
	conf := new(model.Conference)
	confKey, err := s.lookup(ctx, websafeConferenceKey, model.KindConference, conf)
	if err != nil {
		return model.SessionForms{}, err
	}
	sessions, err := database.GetAll(ctx, s.store, q.Ancestor(confKey), newSessionEntity)
	if err != nil {
		return model.SessionForms{}, err
	}
	return sessionsToForms(sessions), nil
}

func sessionQuery() *database.Query {
	return database.NewQuery(model.KindSession)
}

func (s *Service) GetConferenceSessions(ctx context.Context, websafeConferenceKey string) (model.SessionForms, error) {
	return s.conferenceSessions(ctx, websafeConferenceKey, sessionQuery())
}

func (s *Service) GetConferenceSessionsByType(ctx context.Context, websafeConferenceKey, typeOfSession string) (model.SessionForms, error) {
	return s.conferenceSessions(ctx, websafeConferenceKey,
		sessionQuery().Filter("typeOfSession", database.Equal, typeOfSession))
}

func (s *Service) GetConferenceSessionsByDate(ctx context.Context, websafeConferenceKey, date string) (model.SessionForms, error) {
	day, err := parseDate("date", date)
	if err != nil {
		return model.SessionForms{}, err
	}
	return s.conferenceSessions(ctx, websafeConferenceKey,
		sessionQuery().Filter("date", database.Equal, day))
}

func (s *Service) GetConferenceSessionsByHighlight(ctx context.Context, websafeConferenceKey, highlight string) (model.SessionForms, error) {
	return s.conferenceSessions(ctx, websafeConferenceKey,
		sessionQuery().Filter("highlights", database.Equal, highlight))
}

// GetSessionsBySpeaker lists the speaker's sessions across all conferences.
func (s *Service) GetSessionsBySpeaker(ctx context.Context, speaker string) (model.SessionForms, error) {
	q := sessionQuery().Filter("speaker", database.Equal, speaker)
	sessions, err := database.GetAll(ctx, s.store, q, newSessionEntity)
	if err != nil {
		return model.SessionForms{}, err
	}
	return sessionsToForms(sessions), nil
}
