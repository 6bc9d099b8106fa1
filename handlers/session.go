package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

func (h *Handlers) CreateSession(c *fiber.Ctx) error {
	form := new(model.SessionForm)
	if err := c.BodyParser(form); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable session parameters: %v", err))
	}

	created, err := h.svc.CreateSession(c.UserContext(), h.user(c), c.Params("websafeConferenceKey"), *form)
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, created)
}

func (h *Handlers) GetConferenceSessions(c *fiber.Ctx) error {
	return sessions(c)(h.svc.GetConferenceSessions(c.UserContext(), c.Params("websafeConferenceKey")))
}

func (h *Handlers) GetConferenceSessionsByType(c *fiber.Ctx) error {
	return sessions(c)(h.svc.GetConferenceSessionsByType(c.UserContext(),
		c.Params("websafeConferenceKey"), param(c, "typeOfSession")))
}

func (h *Handlers) GetConferenceSessionsByDate(c *fiber.Ctx) error {
	return sessions(c)(h.svc.GetConferenceSessionsByDate(c.UserContext(),
		c.Params("websafeConferenceKey"), param(c, "date")))
}

func (h *Handlers) GetConferenceSessionsByHighlight(c *fiber.Ctx) error {
	return sessions(c)(h.svc.GetConferenceSessionsByHighlight(c.UserContext(),
		c.Params("websafeConferenceKey"), param(c, "highlight")))
}

func (h *Handlers) GetSessionsBySpeaker(c *fiber.Ctx) error {
	return sessions(c)(h.svc.GetSessionsBySpeaker(c.UserContext(), param(c, "speaker")))
}

// sessions answers with the result of a session listing.
func sessions(c *fiber.Ctx) func(model.SessionForms, error) error {
	return func(forms model.SessionForms, err error) error {
		if err != nil {
			return errors.Raise(c, err)
		}
		return respond(c, forms)
	}
}
