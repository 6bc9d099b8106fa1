package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

func (h *Handlers) CreateConference(c *fiber.Ctx) error {
	form := new(model.ConferenceForm)
	if err := c.BodyParser(form); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable conference parameters: %v", err))
	}

	created, err := h.svc.CreateConference(c.UserContext(), h.user(c), *form)
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, created)
}

func (h *Handlers) UpdateConference(c *fiber.Ctx) error {
	form := new(model.ConferenceForm)
	if err := c.BodyParser(form); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable conference parameters: %v", err))
	}

	updated, err := h.svc.UpdateConference(c.UserContext(), h.user(c), c.Params("websafeConferenceKey"), *form)
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, updated)
}

func (h *Handlers) GetConference(c *fiber.Ctx) error {
	conf, err := h.svc.GetConference(c.UserContext(), c.Params("websafeConferenceKey"))
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, conf)
}

func (h *Handlers) GetConferencesCreated(c *fiber.Ctx) error {
	confs, err := h.svc.GetConferencesCreated(c.UserContext(), h.user(c))
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, confs)
}

func (h *Handlers) QueryConferences(c *fiber.Ctx) error {
	filters := new(model.ConferenceQueryForms)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(filters); err != nil {
			return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable query filters: %v", err))
		}
	}

	confs, err := h.svc.QueryConferences(c.UserContext(), *filters)
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, confs)
}

func (h *Handlers) GetAnnouncement(c *fiber.Ctx) error {
	return respond(c, h.svc.GetAnnouncement(c.UserContext()))
}

func (h *Handlers) GetFeaturedSpeaker(c *fiber.Ctx) error {
	return respond(c, h.svc.GetFeaturedSpeaker(c.UserContext()))
}
