package server

import (
	"github.com/gofiber/fiber/v2"
)

// Chat answers with {"reply": ...}. It always responds 200.
func (s *Server) Chat(c *fiber.Ctx) error {
	reply, _ := s.chatService.Respond(c.UserContext(), c.Body())
	return c.JSON(fiber.Map{"reply": reply})
}
