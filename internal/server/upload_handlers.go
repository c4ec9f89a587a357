package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"vlogy/internal/models"
	"vlogy/internal/service"

	"github.com/gofiber/fiber/v2"
)

// uploadFields are tried in order; the first present file wins.
var uploadFields = []string{"file", "image"}

func formFile(c *fiber.Ctx) *multipart.FileHeader {
	for _, field := range uploadFields {
		if fh, err := c.FormFile(field); err == nil && fh != nil && fh.Filename != "" {
			return fh
		}
	}
	return nil
}

func readFile(fh *multipart.FileHeader) ([]byte, string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}
	return content, contentType, nil
}

func (s *Server) maxUploadBytes() int64 {
	return int64(s.config.MaxUploadMB) * 1024 * 1024
}

// bodyLimit leaves room above MAX_UPLOAD_MB so an oversize photo reaches
// Upload and is redirected. Bodies past it are refused by fasthttp with 413.
func bodyLimit(maxUploadMB int) int {
	return (2*maxUploadMB + 1) * 1024 * 1024
}

// Upload publishes a post for the session user. It always redirects home.
func (s *Server) Upload(c *fiber.Ctx) error {
	ctx := c.UserContext()
	in := service.PublishInput{
		Title: c.FormValue("title"),
		Desc:  c.FormValue("desc"),
	}

	if fh := formFile(c); fh != nil {
		if fh.Size > s.maxUploadBytes() {
			s.feedService.Reject(ctx, models.NewValidationError(fmt.Sprintf("upload %q exceeds %d MB", fh.Filename, s.config.MaxUploadMB)))
			return redirectHome(c)
		}
		content, contentType, err := readFile(fh)
		if err != nil {
			s.feedService.Reject(ctx, err)
			return redirectHome(c)
		}
		in.HasFile = true
		in.Filename = fh.Filename
		in.Content = content
		in.ContentType = contentType
	}

	s.feedService.Publish(ctx, in)
	return redirectHome(c)
}
