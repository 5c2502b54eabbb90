package serverutils

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Error is an HTTP-coded error that handlers and controllers can return.
// The error handler middleware turns it into a JSON response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, message string) Error {
	return Error{
		Code:    code,
		Message: message,
	}
}

// ValidationError carries per-field failures from request validation.
type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errs map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errs,
	}
}

func ErrBadRequest(msg string) Error {
	if msg == "" {
		msg = "invalid JSON request"
	}
	return NewError(fiber.StatusBadRequest, msg)
}

func ErrInvalidID() Error {
	return NewError(fiber.StatusBadRequest, "invalid id given")
}

func ErrUnAuthorized(msg string) Error {
	return NewError(fiber.StatusUnauthorized, msg)
}

func ErrForbidden(msg string) Error {
	return NewError(fiber.StatusForbidden, msg)
}

func ErrNotFound[T any](arg T, resource string) Error {
	return NewError(fiber.StatusNotFound, fmt.Sprintf("%s with %v not found", resource, arg))
}

func ErrInvalidCredentials() Error {
	return NewError(fiber.StatusBadRequest, "invalid credentials")
}

// ErrNotProcessed marks a query against a book whose embeddings don't exist
// yet. 409 rather than 404: the book is there, its index isn't.
func ErrNotProcessed(bookID int64) Error {
	return NewError(fiber.StatusConflict, fmt.Sprintf("book %d has not been processed yet", bookID))
}

func ErrProviderBusy() Error {
	return NewError(fiber.StatusServiceUnavailable, "embedding provider is rate limiting, try again shortly")
}

// ErrorHandlerMiddleware converts typed errors bubbling out of handlers into
// JSON responses. Anything untyped becomes a 500 with a generic message.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		var apiErr Error
		if errors.As(err, &apiErr) {
			return c.Status(apiErr.Code).JSON(apiErr)
		}

		var valErr ValidationError
		if errors.As(err, &valErr) {
			return c.Status(valErr.Status).JSON(valErr)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		curTime := time.Now()
		fmt.Printf("%s Request failed with unhandled error: %s\n", &curTime, err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "internal server error"))
	}
}
