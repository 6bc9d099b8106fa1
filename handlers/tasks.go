package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

// TaskSecretHeader carries the shared secret of the task and cron endpoints.
const TaskSecretHeader = "X-Task-Secret"

type confirmationTask struct {
	Email          string `json:"email" form:"email"`
	ConferenceInfo string `json:"conferenceInfo" form:"conferenceInfo"`
}

type speakerTask struct {
	Speaker              string `json:"speaker" form:"speaker"`
	WebsafeConferenceKey string `json:"websafeConferenceKey" form:"websafeConferenceKey"`
}

// RequireTaskSecret rejects task and cron calls without the configured secret.
func (h *Handlers) RequireTaskSecret(c *fiber.Ctx) error {
	if h.cfg.TaskSecret != "" && c.Get(TaskSecretHeader) != h.cfg.TaskSecret {
		return errors.RaisePermissionsError(c, "task endpoints require the task secret")
	}
	return c.Next()
}

func (h *Handlers) SendConfirmationEmail(c *fiber.Ctx) error {
	task := new(confirmationTask)
	if err := c.BodyParser(task); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable task parameters: %v", err))
	}

	err := h.svc.SendConfirmationEmail(c.UserContext(), map[string]string{
		"email":          task.Email,
		"conferenceInfo": task.ConferenceInfo,
	})
	if err != nil {
		return errors.Raise(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) SetSpeaker(c *fiber.Ctx) error {
	task := new(speakerTask)
	if err := c.BodyParser(task); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable task parameters: %v", err))
	}

	if err := h.svc.CacheFeaturedSpeaker(c.UserContext(), task.Speaker, task.WebsafeConferenceKey); err != nil {
		return errors.Raise(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) SetAnnouncement(c *fiber.Ctx) error {
	announcement, err := h.svc.CacheAnnouncement(c.UserContext())
	if err != nil {
		return errors.Raise(c, err)
	}
	return respond(c, model.StringMessage{Data: announcement})
}
