package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfallmann/conf-central/database"
	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

func TestBuildConferenceQuery(t *testing.T) {
	tests := []struct {
		description    string
		filters        []model.ConferenceQueryForm
		expectedErr    string
		expectedOrders []database.Order
	}{
		{
			description:    "no filters sorts by name",
			expectedOrders: []database.Order{{Field: "name"}},
		},
		{
			description:    "equality only sorts by name",
			filters:        []model.ConferenceQueryForm{{Field: "CITY", Operator: "EQ", Value: "London"}},
			expectedOrders: []database.Order{{Field: "name"}},
		},
		{
			description: "inequality on one field",
			filters: []model.ConferenceQueryForm{
				{Field: "MONTH", Operator: "GT", Value: "3"},
				{Field: "MONTH", Operator: "LT", Value: "10"},
			},
			expectedOrders: []database.Order{{Field: "month"}, {Field: "name"}},
		},
		{
			description: "inequality on two fields",
			filters: []model.ConferenceQueryForm{
				{Field: "MONTH", Operator: "GT", Value: "3"},
				{Field: "CITY", Operator: "GT", Value: "A"},
			},
			expectedErr: "Inequality filter is allowed on only one field.",
		},
		{
			description: "unknown field",
			filters:     []model.ConferenceQueryForm{{Field: "NAME", Operator: "EQ", Value: "x"}},
			expectedErr: "Filter contains invalid field or operator.",
		},
		{
			description: "unknown operator",
			filters:     []model.ConferenceQueryForm{{Field: "CITY", Operator: "LIKE", Value: "x"}},
			expectedErr: "Filter contains invalid field or operator.",
		},
		{
			description: "non integer month",
			filters:     []model.ConferenceQueryForm{{Field: "MONTH", Operator: "EQ", Value: "June"}},
			expectedErr: "Filter value for MONTH must be an integer.",
		},
	}

	for _, test := range tests {
		q, err := BuildConferenceQuery(test.filters)
		if test.expectedErr != "" {
			assert.ErrorIsf(t, err, errors.ErrValidation, test.description)
			var e *errors.Error
			if assert.ErrorAsf(t, err, &e, test.description) {
				assert.Equalf(t, test.expectedErr, e.Message, test.description)
			}
			continue
		}
		require.NoErrorf(t, err, test.description)
		assert.Equalf(t, test.expectedOrders, q.Orders(), test.description)
		assert.Equalf(t, model.KindConference, q.Kind(), test.description)
	}
}

func TestBuildConferenceQuery_CoercesIntegers(t *testing.T) {
	q, err := BuildConferenceQuery([]model.ConferenceQueryForm{
		{Field: "MAX_ATTENDEES", Operator: "GTEQ", Value: "50"},
		{Field: "TOPIC", Operator: "EQ", Value: "Go"},
	})
	require.NoError(t, err)

	assert.Equal(t, []database.Filter{
		{Field: "maxAttendees", Op: database.GreaterOrEqual, Value: int64(50)},
		{Field: "topics", Op: database.Equal, Value: "Go"},
	}, q.Filters())
}

func TestQueryConferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createConference(t, alice, model.ConferenceForm{Name: "Zeta", City: "London", StartDate: "2024-05-01", Topics: []string{"Go"}})
	f.createConference(t, alice, model.ConferenceForm{Name: "Alpha", City: "London", StartDate: "2024-08-01", Topics: []string{"Go", "Cloud"}})
	f.createConference(t, bob, model.ConferenceForm{Name: "Mid", City: "Paris", StartDate: "2024-05-20", Topics: []string{"Rust"}})
	f.createConference(t, bob, model.ConferenceForm{Name: "Late", City: "Paris", StartDate: "2024-11-02"})

	names := func(forms model.ConferenceForms) []string {
		var out []string
		for _, item := range forms.Items {
			out = append(out, item.Name)
		}
		return out
	}

	got, err := f.svc.QueryConferences(ctx, model.ConferenceQueryForms{Filters: []model.ConferenceQueryForm{
		{Field: "MONTH", Operator: "GT", Value: "3"},
		{Field: "MONTH", Operator: "LT", Value: "10"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mid", "Zeta", "Alpha"}, names(got), "ordered by month then name")

	got, err = f.svc.QueryConferences(ctx, model.ConferenceQueryForms{Filters: []model.ConferenceQueryForm{
		{Field: "TOPIC", Operator: "EQ", Value: "Go"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Zeta"}, names(got))
	assert.Equal(t, "Alice", got.Items[0].OrganizerDisplayName)

	got, err = f.svc.QueryConferences(ctx, model.ConferenceQueryForms{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Late", "Mid", "Zeta"}, names(got))

	_, err = f.svc.QueryConferences(ctx, model.ConferenceQueryForms{Filters: []model.ConferenceQueryForm{
		{Field: "MONTH", Operator: "GT", Value: "3"},
		{Field: "CITY", Operator: "GT", Value: "A"},
	}})
	assert.ErrorIs(t, err, errors.ErrValidation)
}
