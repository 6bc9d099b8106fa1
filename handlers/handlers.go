package handlers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sfallmann/conf-central/config"
	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/middleware"
	"github.com/sfallmann/conf-central/model"
	"github.com/sfallmann/conf-central/service"
)

// Identity resolves request callers and signs login tokens.
type Identity interface {
	middleware.IdentityProvider
	IssueToken(user model.User, ttl time.Duration) (string, error)
}

type Config struct {
	Accounts []config.Account
	TokenTTL time.Duration

	// TaskSecret guards the task and cron endpoints when set.
	TaskSecret string
}

// Handlers serves the conference API over fiber.
type Handlers struct {
	svc      *service.Service
	identity Identity
	cfg      Config
}

func New(svc *service.Service, identity Identity, cfg Config) *Handlers {
	return &Handlers{svc: svc, identity: identity, cfg: cfg}
}

func (h *Handlers) user(c *fiber.Ctx) *model.User {
	return h.identity.CurrentUser(c)
}

func respond(c *fiber.Ctx, v any) error {
	body, err := json.MarshalIndent(v, "", "	")
	if err != nil {
		return errors.RaiseInternalServerError(c, fmt.Sprintf("json serialization error: %v", err))
	}
	c.Type("json")
	return c.Send(body)
}

// param returns the unescaped value of a route parameter.
func param(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	value, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return value
}

// NotFound answers requests that matched no route.
func (h *Handlers) NotFound(c *fiber.Ctx) error {
	return errors.RaiseNotFoundError(c, fmt.Sprintf("No route for %s %s", c.Method(), c.Path()))
}
