package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderName is the header checked for an incoming ray id and set on the
// response.
const HeaderName = "X-Ray-ID"

// New returns a middleware that attaches a ray id to every request. An
// incoming X-Ray-ID is honored so upstream proxies can correlate; otherwise
// a fresh UUID is generated. The id is stored in Locals under "ray_id" for
// logger.WithRayID.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(HeaderName)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals("ray_id", rid)
		c.Set(HeaderName, rid)
		return c.Next()
	}
}
