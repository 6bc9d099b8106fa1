package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sfallmann/conf-central/config"
	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

func isPasswordHashCorrect(hash, pass string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass))
	return err == nil
}

func (h *Handlers) account(login string) (config.Account, bool) {
	for _, a := range h.cfg.Accounts {
		if a.Login == login {
			return a, true
		}
	}
	return config.Account{}, false
}

func (h *Handlers) Login(c *fiber.Ctx) error {
	type Credentials struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}

	creds := new(Credentials)
	if err := c.BodyParser(creds); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("Error on login request when parse credentials: %v", err))
	}

	account, ok := h.account(creds.Login)
	if !ok || !isPasswordHashCorrect(account.PasswordHash, creds.Password) {
		return errors.RaiseUnauthorizedError(c, "Invalid login or password")
	}

	t, err := h.identity.IssueToken(model.User{
		ID:       account.Login,
		Email:    account.Email,
		Nickname: account.DisplayName,
	}, h.cfg.TokenTTL)
	if err != nil {
		zerolog.Ctx(c.UserContext()).Err(err).Msg("Failed to sign token")
		return errors.RaiseInternalServerError(c, "server side problem occured while processing the request")
	}

	return c.JSON(fiber.Map{"status": "success", "message": "Success login", "data": t})
}
