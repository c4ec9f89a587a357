package server

import (
	"vlogy/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

func redirectHome(c *fiber.Ctx) error {
	return c.Redirect("/", fiber.StatusFound)
}

// sessionUser returns the email stored in the session, or "".
func (s *Server) sessionUser(c *fiber.Ctx) (string, error) {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return "", err
	}
	user, _ := sess.Get(sessionUserKey).(string)
	return user, nil
}

func setUser(c *fiber.Ctx, email string) {
	c.Locals("userEmail", email)
	c.SetUserContext(middleware.WithUserEmail(c.UserContext(), email))
}

// SessionUserRequired lets the request through only when the session carries a
// user. Otherwise onDenied handles it.
func (s *Server) SessionUserRequired(onDenied fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.sessionUser(c)
		if err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "session lookup failed", "error", err)
			return onDenied(c)
		}
		if user == "" {
			return onDenied(c)
		}
		setUser(c, user)
		return c.Next()
	}
}

// OptionalSessionUser exposes the session user, when present, to later handlers.
func (s *Server) OptionalSessionUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user, err := s.sessionUser(c); err == nil && user != "" {
			setUser(c, user)
		}
		return c.Next()
	}
}
