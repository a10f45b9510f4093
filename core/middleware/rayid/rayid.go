// Package rayid tags every request with a unique id.
package rayid

import (
	"essync/core/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// Header carries the ray id on requests and responses.
	Header = "X-Ray-ID"
	// LocalsKey stores the ray id in the Fiber context.
	LocalsKey = logger.RayIDKey
)

// New returns a middleware that reuses an incoming ray id or generates one,
// stores it under LocalsKey and echoes it in the response header.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(LocalsKey, id)
		c.Set(Header, id)
		return c.Next()
	}
}
