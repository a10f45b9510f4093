// Package auth protects routes with an API key or with the users of a source
// database.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// HeaderAPIKey carries the API key.
const HeaderAPIKey = "X-API-Key"

// Config configures API key validation.
type Config struct {
	// ApiKey is the expected key. Empty disables the check.
	ApiKey string
}

// New returns a middleware that rejects requests without the configured key.
func New(cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.ApiKey == "" {
			return c.Next()
		}
		key := c.Get(HeaderAPIKey)
		if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.ApiKey)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid api key"})
		}
		return c.Next()
	}
}

// Authenticator verifies credentials against the database named by a request.
type Authenticator func(ctx context.Context, database, user, password string) error

// UserLocalsKey stores the authenticated user name in the Fiber context.
const UserLocalsKey = "user"

// Basic returns a middleware that authenticates HTTP basic credentials against
// the database in route parameter param.
func Basic(param string, authenticate Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, password, ok := parseBasic(c.Get(fiber.HeaderAuthorization))
		if !ok {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="essync"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing credentials"})
		}
		if err := authenticate(c.UserContext(), c.Params(param), user, password); err != nil {
			return err
		}
		c.Locals(UserLocalsKey, user)
		return c.Next()
	}
}

func parseBasic(header string) (user, password string, ok bool) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(raw), ":")
}
