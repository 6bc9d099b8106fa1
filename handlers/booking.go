package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sfallmann/conf-central/errors"
)

func (h *Handlers) RegisterForConference(c *fiber.Ctx) error {
	result, err := h.svc.RegisterForConference(c.UserContext(), h.user(c), c.Params("websafeConferenceKey"))
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, result)
}

func (h *Handlers) UnregisterFromConference(c *fiber.Ctx) error {
	result, err := h.svc.UnregisterFromConference(c.UserContext(), h.user(c), c.Params("websafeConferenceKey"))
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, result)
}

func (h *Handlers) GetConferencesToAttend(c *fiber.Ctx) error {
	confs, err := h.svc.GetConferencesToAttend(c.UserContext(), h.user(c))
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, confs)
}
