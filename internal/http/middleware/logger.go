package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"comfyguardians/internal/logger"
)

// ErrorLocalKey is the Fiber locals key where handlers leave the internal
// cause of an error response. It is logged, never returned to the client.
const ErrorLocalKey = "error_cause"

// Logger logs each HTTP request as one JSON line with:
// - request_id (set by the RequestID middleware)
// - method
// - path
// - status
// - latency (milliseconds, float)
//
// 5xx responses are logged at error level and 4xx at warn.
func Logger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		cause, _ := c.Locals(ErrorLocalKey).(error)
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
			cause = err
		}

		rid, _ := c.Locals(RequestIDLocalKey).(string)

		var ev *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			ev = log.Error()
		case status >= fiber.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		if cause != nil {
			ev = ev.AnErr("cause", cause)
		}
		ev.Str("request_id", rid).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Float64("latency", float64(time.Since(start).Microseconds())/1000).
			Send()

		return err
	}
}

// LoggerWithWriter builds a request logger that writes to w with timestamps in loc.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return Logger(logger.NewWithWriter(w, "info", loc))
}
