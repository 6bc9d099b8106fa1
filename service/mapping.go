package service

import (
	"strings"
	"time"

	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	defaultCity   = "Default City"
	defaultTopics = []string{"Default", "Topic"}
)

// parseDate reads a YYYY-MM-DD date from the first ten characters of s.
func parseDate(field, s string) (time.Time, error) {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.KindValidation, "Invalid "+field+", expected YYYY-MM-DD", err)
	}
	return t, nil
}

func parseTimeOfDay(field, s string) (string, error) {
	t, err := time.Parse(timeLayout, strings.TrimSpace(s))
	if err != nil {
		return "", errors.Wrap(errors.KindValidation, "Invalid "+field+", expected HH:MM", err)
	}
	return t.Format(timeLayout), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func conferenceToForm(c *model.Conference, displayName string) model.ConferenceForm {
	maxAttendees, seats := c.MaxAttendees, c.SeatsAvailable
	form := model.ConferenceForm{
		Name:                 c.Name,
		Description:          c.Description,
		OrganizerUserID:      c.OrganizerUserID,
		Topics:               append([]string(nil), c.Topics...),
		City:                 c.City,
		StartDate:            formatDate(c.StartDate),
		Month:                c.Month,
		MaxAttendees:         &maxAttendees,
		SeatsAvailable:       &seats,
		EndDate:              formatDate(c.EndDate),
		OrganizerDisplayName: displayName,
	}
	if c.Key != nil {
		form.WebsafeKey = c.Key.Encode()
	}
	return form
}

// conferenceFromForm builds a new conference from a creation request with
// the defaults applied.
func conferenceFromForm(form model.ConferenceForm) (*model.Conference, error) {
	c := &model.Conference{
		Name:        form.Name,
		Description: form.Description,
		Topics:      append([]string(nil), form.Topics...),
		City:        form.City,
	}
	if c.City == "" {
		c.City = defaultCity
	}
	if len(c.Topics) == 0 {
		c.Topics = append([]string(nil), defaultTopics...)
	}
	if form.MaxAttendees != nil {
		c.MaxAttendees = *form.MaxAttendees
	}
	if form.SeatsAvailable != nil {
		c.SeatsAvailable = *form.SeatsAvailable
	}
	if err := setConferenceDates(c, form); err != nil {
		return nil, err
	}
	// With no attendee limit the submitted or defaulted seat count is kept.
	if c.MaxAttendees > 0 {
		c.SeatsAvailable = c.MaxAttendees
	}
	return c, nil
}

// updateConferenceFromForm copies the fields present in form onto c. Server
// managed fields are never taken from the request.
func updateConferenceFromForm(c *model.Conference, form model.ConferenceForm) error {
	if form.Name != "" {
		c.Name = form.Name
	}
	if form.Description != "" {
		c.Description = form.Description
	}
	if len(form.Topics) > 0 {
		c.Topics = append([]string(nil), form.Topics...)
	}
	if form.City != "" {
		c.City = form.City
	}
	if form.MaxAttendees != nil {
		c.MaxAttendees = *form.MaxAttendees
	}
	if form.SeatsAvailable != nil {
		c.SeatsAvailable = *form.SeatsAvailable
	}
	return setConferenceDates(c, form)
}

func setConferenceDates(c *model.Conference, form model.ConferenceForm) error {
	if form.StartDate != "" {
		start, err := parseDate("startDate", form.StartDate)
		if err != nil {
			return err
		}
		c.StartDate = start
		c.Month = int(start.Month())
	}
	if form.EndDate != "" {
		end, err := parseDate("endDate", form.EndDate)
		if err != nil {
			return err
		}
		c.EndDate = end
	}
	return nil
}

func sessionToForm(s *model.Session) model.SessionForm {
	form := model.SessionForm{
		Name:          s.Name,
		Highlights:    append([]string(nil), s.Highlights...),
		Speaker:       s.Speaker,
		Duration:      s.Duration,
		TypeOfSession: s.TypeOfSession,
		Date:          formatDate(s.Date),
		StartTime:     s.StartTime,
	}
	if s.Key != nil {
		form.WebsafeKey = s.Key.Encode()
	}
	return form
}

func sessionFromForm(form model.SessionForm) (*model.Session, error) {
	s := &model.Session{
		Name:          form.Name,
		Highlights:    append([]string(nil), form.Highlights...),
		Speaker:       form.Speaker,
		Duration:      form.Duration,
		TypeOfSession: form.TypeOfSession,
	}
	if form.Date != "" {
		date, err := parseDate("date", form.Date)
		if err != nil {
			return nil, err
		}
		s.Date = date
	}
	if form.StartTime != "" {
		start, err := parseTimeOfDay("startTime", form.StartTime)
		if err != nil {
			return nil, err
		}
		s.StartTime = start
	}
	return s, nil
}

func sessionsToForms(sessions []*model.Session) model.SessionForms {
	forms := model.SessionForms{Items: make([]model.SessionForm, 0, len(sessions))}
	for _, s := range sessions {
		forms.Items = append(forms.Items, sessionToForm(s))
	}
	return forms
}

func profileToForm(p *model.Profile) model.ProfileForm {
	return model.ProfileForm{
		DisplayName:            p.DisplayName,
		MainEmail:              p.MainEmail,
		TeeShirtSize:           p.TeeShirtSize,
		ConferenceKeysToAttend: append([]string{}, p.ConferenceKeysToAttend...),
	}
}

func newProfile(user *model.User) *model.Profile {
	return &model.Profile{
		UserID:       user.ID,
		DisplayName:  user.Nickname,
		MainEmail:    user.Email,
		TeeShirtSize: model.NotSpecified,
	}
}
