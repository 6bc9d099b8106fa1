package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

func TestRegisterTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, alice, model.ConferenceForm{Name: "GopherCon", MaxAttendees: intPtr(10)})

	first, err := f.svc.RegisterForConference(ctx, bob, conf.WebsafeKey)
	require.NoError(t, err)
	assert.True(t, first.Data)

	_, err = f.svc.RegisterForConference(ctx, bob, conf.WebsafeKey)
	assert.ErrorIs(t, err, errors.ErrConflict)
	assert.EqualError(t, err, "You have already registered for this conference")

	assert.Equal(t, 9, f.storedConference(t, conf.WebsafeKey).SeatsAvailable)
	assert.Equal(t, []string{conf.WebsafeKey}, f.storedProfile(t, "bob").ConferenceKeysToAttend)
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, alice, model.ConferenceForm{Name: "GopherCon", MaxAttendees: intPtr(10)})

	result, err := f.svc.UnregisterFromConference(ctx, bob, conf.WebsafeKey)
	require.NoError(t, err)
	assert.False(t, result.Data)
	assert.Equal(t, 10, f.storedConference(t, conf.WebsafeKey).SeatsAvailable)

	_, err = f.svc.RegisterForConference(ctx, bob, conf.WebsafeKey)
	require.NoError(t, err)
	result, err = f.svc.UnregisterFromConference(ctx, bob, conf.WebsafeKey)
	require.NoError(t, err)
	assert.True(t, result.Data)
	assert.Equal(t, 10, f.storedConference(t, conf.WebsafeKey).SeatsAvailable)
	assert.Empty(t, f.storedProfile(t, "bob").ConferenceKeysToAttend)
}

func TestRegisterSoldOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, alice, model.ConferenceForm{Name: "GopherCon"})

	_, err := f.svc.RegisterForConference(ctx, bob, conf.WebsafeKey)
	assert.ErrorIs(t, err, errors.ErrConflict)
	assert.EqualError(t, err, "There are no seats available.")

	assert.Equal(t, 0, f.storedConference(t, conf.WebsafeKey).SeatsAvailable)
	_, err = f.svc.GetProfile(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, f.storedProfile(t, "bob").ConferenceKeysToAttend)
}

func TestRegister_KeyErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, alice, model.ConferenceForm{Name: "GopherCon", MaxAttendees: intPtr(10)})
	session := f.createSession(t, alice, conf.WebsafeKey, model.SessionForm{Name: "Keynote"})

	_, err := f.svc.RegisterForConference(ctx, nil, conf.WebsafeKey)
	assert.ErrorIs(t, err, errors.ErrAuth)

	_, err = f.svc.RegisterForConference(ctx, bob, session.WebsafeKey)
	assert.ErrorIs(t, err, errors.ErrKindMismatch)

	missing := model.NewIDKey(model.KindConference, 999, model.ProfileKey("alice")).Encode()
	_, err = f.svc.RegisterForConference(ctx, bob, missing)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRegister_PaddedKeyIsCanonicalized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, alice, model.ConferenceForm{Name: "GopherCon", MaxAttendees: intPtr(10)})

	_, err := f.svc.RegisterForConference(ctx, bob, conf.WebsafeKey+"==")
	require.NoError(t, err)
	_, err = f.svc.RegisterForConference(ctx, bob, conf.WebsafeKey)
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestRegister_RetriesOnContention(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, alice, model.ConferenceForm{Name: "GopherCon", MaxAttendees: intPtr(10)})

	contended := &contendedStore{Store: f.store, failures: 2}
	svc := New(Deps{Store: contended, Cache: f.cache, Queue: f.queue, Mailer: f.mailer, Log: zerolog.Nop(), MaxTxAttempts: 3})

	result, err := svc.RegisterForConference(ctx, bob, conf.WebsafeKey)
	require.NoError(t, err)
	assert.True(t, result.Data)
	assert.Equal(t, 3, contended.calls)
	assert.Equal(t, 9, f.storedConference(t, conf.WebsafeKey).SeatsAvailable)
}

func TestRegister_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conf := f.createConference(t, alice, model.ConferenceForm{Name: "GopherCon", MaxAttendees: intPtr(10)})

	contended := &contendedStore{Store: f.store, failures: 10}
	svc := New(Deps{Store: contended, Cache: f.cache, Queue: f.queue, Mailer: f.mailer, Log: zerolog.Nop(), MaxTxAttempts: 3})

	_, err := svc.RegisterForConference(ctx, bob, conf.WebsafeKey)
	assert.ErrorIs(t, err, errors.ErrContention)
	assert.Equal(t, 3, contended.calls)
	assert.Equal(t, 10, f.storedConference(t, conf.WebsafeKey).SeatsAvailable)
}

func TestGetConferencesToAttend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.createConference(t, alice, model.ConferenceForm{Name: "GopherCon", MaxAttendees: intPtr(10)})
	second := f.createConference(t, alice, model.ConferenceForm{Name: "dotGo", MaxAttendees: intPtr(10)})
	f.createConference(t, alice, model.ConferenceForm{Name: "Skipped", MaxAttendees: intPtr(10)})

	for _, conf := range []model.ConferenceForm{second, first} {
		_, err := f.svc.RegisterForConference(ctx, bob, conf.WebsafeKey)
		require.NoError(t, err)
	}

	attending, err := f.svc.GetConferencesToAttend(ctx, bob)
	require.NoError(t, err)
	require.Len(t, attending.Items, 2)
	assert.Equal(t, "dotGo", attending.Items[0].Name)
	assert.Equal(t, "GopherCon", attending.Items[1].Name)
	assert.Equal(t, "Alice", attending.Items[0].OrganizerDisplayName)
	assert.Equal(t, 9, *attending.Items[0].SeatsAvailable)
}
