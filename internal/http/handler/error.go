package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"comfyguardians/internal/http/middleware"
	"comfyguardians/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "CHILD_NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// serviceErrors maps service sentinels to responses. The sentinel's text is
// safe to return as the message.
var serviceErrors = []errorMapping{
	{service.ErrMissingFields, fiber.StatusBadRequest, "MISSING_FIELDS"},
	{service.ErrTermsNotAccepted, fiber.StatusBadRequest, "TERMS_NOT_ACCEPTED"},
	{service.ErrInvalidEmail, fiber.StatusBadRequest, "INVALID_EMAIL"},
	{service.ErrInvalidID, fiber.StatusBadRequest, "INVALID_ID"},
	{service.ErrInvalidMessage, fiber.StatusBadRequest, "INVALID_MESSAGE_TYPE"},
	{service.ErrInvalidMetadata, fiber.StatusBadRequest, "INVALID_METADATA"},
	{service.ErrUnknownAction, fiber.StatusBadRequest, "UNKNOWN_ACTION"},
	{service.ErrGuardianMismatch, fiber.StatusForbidden, "GUARDIAN_MISMATCH"},
	{service.ErrInvalidToken, fiber.StatusForbidden, "INVALID_TOKEN"},
	{service.ErrChildNotFound, fiber.StatusNotFound, "CHILD_NOT_FOUND"},
	{service.ErrChatNotFound, fiber.StatusNotFound, "CHAT_NOT_FOUND"},
	{service.ErrMessageNotFound, fiber.StatusNotFound, "MESSAGE_NOT_FOUND"},
	{service.ErrNoAttachment, fiber.StatusNotFound, "ATTACHMENT_NOT_FOUND"},
	{service.ErrAlreadyAuthorized, fiber.StatusConflict, "ALREADY_AUTHORIZED"},
	{service.ErrAlreadyRejected, fiber.StatusConflict, "ALREADY_REJECTED"},
	{service.ErrAlreadyDecided, fiber.StatusConflict, "ALREADY_DECIDED"},
	{service.ErrGuardianExists, fiber.StatusConflict, "GUARDIAN_EXISTS"},
	{service.ErrGuardianSaveFailed, fiber.StatusInternalServerError, "GUARDIAN_SAVE_FAILED"},
	{service.ErrStorageUnavailable, fiber.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
}

// writeServiceError translates an error returned by a service into the error envelope.
// Unknown errors become a generic 500; their cause is left for the request logger.
func writeServiceError(c *fiber.Ctx, err error) error {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			if m.status >= fiber.StatusInternalServerError {
				c.Locals(middleware.ErrorLocalKey, err)
			}
			return writeError(c, m.status, m.code, err.Error())
		}
	}

	c.Locals(middleware.ErrorLocalKey, err)

	var up *service.UpstreamError
	if errors.As(err, &up) {
		return writeError(c, fiber.StatusInternalServerError, "UPSTREAM_ERROR", up.Message)
	}
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "missing or invalid api key")
		case fiber.StatusForbidden:
			return writeError(c, status, "FORBIDDEN", "forbidden")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		case fiber.StatusTooManyRequests:
			return writeError(c, status, "TOO_MANY_REQUESTS", "too many requests")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
