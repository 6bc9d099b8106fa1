package service

import (
	"context"
	"fmt"

	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/mail"
	"github.com/sfallmann/conf-central/tasks"
)

const (
	confirmationSubject = "You created a new Conference!"
	confirmationBody    = "Hi, you have created a following conference:\r\n\r\n%s"
)

// TaskHandlers returns the handlers of the tasks the service enqueues, keyed
// by task name.
func (s *Service) TaskHandlers() map[string]tasks.Handler {
	return map[string]tasks.Handler{
		tasks.SendConfirmationEmail: s.SendConfirmationEmail,
		tasks.SetSpeaker:            s.SetSpeaker,
	}
}

// SendConfirmationEmail mails the organizer the details of a created conference.
func (s *Service) SendConfirmationEmail(ctx context.Context, params map[string]string) error {
	email := params["email"]
	if email == "" {
		return errors.New(errors.KindValidation, "email parameter required")
	}
	err := s.mailer.Send(ctx, mail.Message{
		To:      email,
		Subject: confirmationSubject,
		Body:    fmt.Sprintf(confirmationBody, params["conferenceInfo"]),
	})
	if err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}
	return nil
}

func (s *Service) SetSpeaker(ctx context.Context, params map[string]string) error {
	return s.CacheFeaturedSpeaker(ctx, params["speaker"], params["websafeConferenceKey"])
}
