package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

func (h *Handlers) GetProfile(c *fiber.Ctx) error {
	profile, err := h.svc.GetProfile(c.UserContext(), h.user(c))
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, profile)
}

func (h *Handlers) SaveProfile(c *fiber.Ctx) error {
	form := new(model.ProfileMiniForm)
	if err := c.BodyParser(form); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable profile parameters: %v", err))
	}

	profile, err := h.svc.SaveProfile(c.UserContext(), h.user(c), *form)
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, profile)
}

func (h *Handlers) AddSessionToWishlist(c *fiber.Ctx) error {
	msg, err := h.svc.AddSessionToWishlist(c.UserContext(), h.user(c), c.Params("websafeSessionKey"))
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, msg)
}

func (h *Handlers) DeleteSessionInWishlist(c *fiber.Ctx) error {
	msg, err := h.svc.DeleteSessionInWishlist(c.UserContext(), h.user(c), c.Params("websafeSessionKey"))
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, msg)
}

func (h *Handlers) GetSessionsInWishlist(c *fiber.Ctx) error {
	return sessions(c)(h.svc.GetSessionsInWishlist(c.UserContext(), h.user(c)))
}
