package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"

	"github.com/sfallmann/conf-central/errors"
	"github.com/sfallmann/conf-central/model"
)

const (
	identityKey = "identity"
	userKey     = "user"
)

// IdentityProvider resolves the caller of a request. A nil user means the
// request is anonymous.
type IdentityProvider interface {
	CurrentUser(c *fiber.Ctx) *model.User
}

// JWTAuth authenticates requests carrying an HS256 bearer token and issues
// such tokens for /login.
type JWTAuth struct {
	signingKey []byte
}

func NewJWTAuth(signingKey string) *JWTAuth {
	return &JWTAuth{signingKey: []byte(signingKey)}
}

// Authorize resolves the bearer token of a request. Requests without a token
// pass through anonymously; invalid tokens are rejected.
func (a *JWTAuth) Authorize() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:     a.signingKey,
		ContextKey:     identityKey,
		ErrorHandler:   jwtError,
		SuccessHandler: identify,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Next()
	}
	return errors.RaiseUnauthorizedError(c, "Invalid or expired JWT")
}

func identify(c *fiber.Ctx) error {
	token, ok := c.Locals(identityKey).(*jwt.Token)
	if !ok {
		return c.Next()
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return errors.RaiseUnauthorizedError(c, "Invalid or expired JWT")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return errors.RaiseUnauthorizedError(c, "Token has no subject")
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	c.Locals(userKey, &model.User{ID: sub, Email: email, Nickname: name})
	return c.Next()
}

// CurrentUser returns the user resolved by Authorize.
func (a *JWTAuth) CurrentUser(c *fiber.Ctx) *model.User {
	user, _ := c.Locals(userKey).(*model.User)
	return user
}

// IssueToken signs a token identifying user that expires after ttl.
func (a *JWTAuth) IssueToken(user model.User, ttl time.Duration) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["sub"] = user.ID
	claims["email"] = user.Email
	claims["name"] = user.Nickname
	claims["exp"] = time.Now().Add(ttl).Unix()

	return token.SignedString(a.signingKey)
}
