package service

import (
	"strconv"

	"github.com/sfallmann/conf-central/database"
	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

// queryFields maps the public filter vocabulary onto stored properties.
var queryFields = map[string]string{
	"CITY":          "city",
	"TOPIC":         "topics",
	"MONTH":         "month",
	"MAX_ATTENDEES": "maxAttendees",
}

var queryOperators = map[string]database.Operator{
	"EQ":   database.Equal,
	"GT":   database.GreaterThan,
	"GTEQ": database.GreaterOrEqual,
	"LT":   database.LessThan,
	"LTEQ": database.LessOrEqual,
	"NE":   database.NotEqual,
}

var integerFields = map[string]bool{
	"month":        true,
	"maxAttendees": true,
}

// BuildConferenceQuery translates client filters into a conference query.
// At most one field may carry inequality filters; results are ordered by
// that field and then by name, or by name alone.
func BuildConferenceQuery(filters []model.ConferenceQueryForm) (*database.Query, error) {
	q := database.NewQuery(model.KindConference)
	inequalityField := ""

	for _, f := range filters {
		field, ok := queryFields[f.Field]
		op, opOK := queryOperators[f.Operator]
		if !ok || !opOK {
			return nil, errors.New(errors.KindValidation, "Filter contains invalid field or operator.")
		}

		if op.Inequality() {
			if inequalityField != "" && inequalityField != field {
				return nil, errors.New(errors.KindValidation, "Inequality filter is allowed on only one field.")
			}
			inequalityField = field
		}

		var value any = f.Value
		if integerFields[field] {
			n, err := strconv.Atoi(f.Value)
			if err != nil {
				return nil, errors.Wrap(errors.KindValidation, "Filter value for "+f.Field+" must be an integer.", err)
			}
			value = n
		}
		q = q.Filter(field, op, value)
	}

	if inequalityField != "" {
		q = q.Order(inequalityField)
	}
	return q.Order("name"), nil
}
