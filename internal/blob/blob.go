// Package blob stores uploaded images and returns their public URLs.
package blob

import (
	"context"
	"path/filepath"
	"strings"
)

// Access is the visibility of a stored object.
type Access string

const (
	AccessPublic Access = "public"
)

// PutOptions controls how an object is stored.
type PutOptions struct {
	Access      Access
	ContentType string
}

// Object describes a stored blob.
type Object struct {
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
}

// Uploader persists content under name and returns where it can be fetched.
type Uploader interface {
	Put(ctx context.Context, name string, content []byte, opts PutOptions) (*Object, error)
}

// SanitizeName reduces a client-supplied filename to a safe single path
// segment made of letters, digits, '.', '-' and '_'.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	out := strings.Trim(b.String(), ".-")
	if out == "" {
		return "upload"
	}
	return out
}
