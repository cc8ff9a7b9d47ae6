package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// APIKeyHeader carries the project key, as sent by hosted-backend clients.
const APIKeyHeader = "apikey"

// APIKey rejects requests that do not present key in the apikey header or as
// an Authorization bearer token. An empty key disables the check.
func APIKey(key string) fiber.Handler {
	if key == "" {
		return Noop()
	}
	want := []byte(key)

	return func(c *fiber.Ctx) error {
		got := c.Get(APIKeyHeader)
		if got == "" {
			if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
				got = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			return fiber.ErrUnauthorized
		}
		return c.Next()
	}
}
