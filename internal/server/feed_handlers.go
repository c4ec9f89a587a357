package server

import (
	"vlogy/internal/middleware"
	"vlogy/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ShowFeed resolves the session user from the identity provider when needed
// and renders every post.
func (s *Server) ShowFeed(c *fiber.Ctx) error {
	ctx := c.UserContext()

	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}

	user, _ := sess.Get(sessionUserKey).(string)
	if user == "" {
		email, outcome := s.profileService.Refresh(ctx, sess)
		switch outcome {
		case models.OutcomeSuccess:
			sess.Set(sessionUserKey, email)
			if err := sess.Save(); err != nil {
				return err
			}
			user = email
		case models.OutcomeNotAuthenticated:
			// anonymous visitor
		default:
			if err := sess.Destroy(); err != nil {
				middleware.Logger.WarnContext(ctx, "failed to destroy session", "error", err)
			}
		}
	}
	if user != "" {
		setUser(c, user)
	}

	posts, err := s.feedService.List(c.UserContext())
	if err != nil {
		return err
	}

	return s.render(c, pageData{
		User:         user,
		LoginEnabled: s.google.Enabled(),
		Posts:        postViews(posts),
	})
}

// Logout destroys the session, including the cached OAuth token.
func (s *Server) Logout(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "failed to destroy session", "error", err)
		}
	}
	return redirectHome(c)
}
