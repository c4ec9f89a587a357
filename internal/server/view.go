package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/url"
	"strings"

	"vlogy/internal/models"

	"github.com/gofiber/fiber/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

type postView struct {
	ID       uint
	Title    string
	Desc     string
	ImageURL string
}

type pageData struct {
	User         string
	LoginEnabled bool
	Posts        []postView
}

func parsePage() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/index.html")
}

// mediaURL resolves the two stored filename forms: absolute or rooted URLs
// are used as-is, bare legacy filenames live under /uploads/.
func mediaURL(p *models.Post) string {
	if p.IsRemote() {
		return strings.TrimSpace(p.Filename)
	}
	if p.Filename == "" {
		return ""
	}
	return "/uploads/" + url.PathEscape(p.Filename)
}

func postViews(posts []*models.Post) []postView {
	out := make([]postView, 0, len(posts))
	for _, p := range posts {
		out = append(out, postView{
			ID:       p.ID,
			Title:    p.Title,
			Desc:     p.Desc,
			ImageURL: mediaURL(p),
		})
	}
	return out
}

func (s *Server) render(c *fiber.Ctx, data pageData) error {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
