package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Kind classifies an error for clients.
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindAuthorization
	KindValidation
	KindNotFound
	KindKindMismatch
	KindConflict
	KindContention
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "AuthError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFoundError"
	case KindKindMismatch:
		return "KindMismatchError"
	case KindConflict:
		return "ConflictError"
	case KindContention:
		return "ContentionError"
	}
	return "InternalError"
}

// Error is a classified error. Message is safe to show to clients; Err is
// the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrConflict) holds
// for every conflict error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrAuth          = &Error{Kind: KindAuth}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrKindMismatch  = &Error{Kind: KindKindMismatch}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrContention    = &Error{Kind: KindContention}
)

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err, keeping it as the logged cause.
func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindAuth:
		return fiber.StatusUnauthorized
	case KindAuthorization:
		return fiber.StatusForbidden
	case KindValidation, KindKindMismatch:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	case KindContention:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func classMessage(kind Kind) string {
	switch kind {
	case KindAuth:
		return "authorization required"
	case KindAuthorization:
		return "lack of permissions"
	case KindValidation, KindKindMismatch:
		return "bad request"
	case KindNotFound:
		return "resource not found"
	case KindConflict:
		return "conflict"
	case KindContention:
		return "too much contention, retry later"
	}
	return "internal error"
}

// Raise answers the request with the error envelope for err. Internal errors
// are logged and replaced by a generic message.
func Raise(c *fiber.Ctx, err error) error {
	log := zerolog.Ctx(c.UserContext())
	kind := KindOf(err)

	var data string
	var e *Error
	if kind != KindInternal && stderrors.As(err, &e) {
		data = e.Message
	}
	if data == "" {
		data = "server side problem occured while processing the request"
	}

	if kind == KindInternal || kind == KindContention {
		log.Err(err).Str("kind", kind.String()).Msg("Request failed")
	} else {
		log.Debug().Err(err).Str("kind", kind.String()).Msg("Request rejected")
	}
	return RaiseError(c, Status(kind), classMessage(kind), data)
}

func RaiseError(context *fiber.Ctx, status int, message string, data string) error {
	return context.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    data})
}

func RaiseUnauthorizedError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusUnauthorized, "authorization required", data)
}

func RaisePermissionsError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusForbidden, "lack of permissions", data)
}

func RaiseInternalServerError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusInternalServerError, "internal error", data)
}

func RaiseBadRequestError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusBadRequest, "bad request", data)
}

func RaiseNotFoundError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusNotFound, "resource not found", data)
}
