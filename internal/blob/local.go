package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"vlogy/internal/models"

	"github.com/google/uuid"
)

// LocalUploader writes uploads to a directory served under PublicPrefix.
type LocalUploader struct {
	Dir          string
	PublicPrefix string
}

// NewLocalUploader creates dir if needed.
func NewLocalUploader(dir string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalUploader{Dir: dir, PublicPrefix: "/uploads/"}, nil
}

func (u *LocalUploader) Put(ctx context.Context, name string, content []byte, opts PutOptions) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file := uuid.NewString() + "-" + SanitizeName(name)
	if err := os.WriteFile(filepath.Join(u.Dir, file), content, 0o644); err != nil {
		return nil, models.NewInternalError(fmt.Errorf("write upload: %w", err))
	}

	publicURL := u.PublicPrefix + file
	return &Object{
		URL:         publicURL,
		DownloadURL: publicURL,
		Pathname:    file,
		ContentType: opts.ContentType,
	}, nil
}
