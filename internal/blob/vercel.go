package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"vlogy/internal/middleware"
	"vlogy/internal/models"
	"vlogy/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"
)

const vercelAPIVersion = "7"

// VercelUploader talks to the Vercel Blob REST API.
type VercelUploader struct {
	baseURL string
	token   string
	timeout time.Duration
}

// NewVercelUploader returns an uploader for the Vercel Blob store at baseURL.
func NewVercelUploader(baseURL, token string, timeout time.Duration) *VercelUploader {
	return &VercelUploader{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
	}
}

// Put uploads content. The store appends a random suffix to the pathname, so
// repeated names never overwrite each other.
func (u *VercelUploader) Put(ctx context.Context, name string, content []byte, opts PutOptions) (obj *Object, err error) {
	ctx, span := observability.StartClientSpan(ctx, "blob", "put")
	defer func() { observability.EndSpan(span, err) }()

	if u.token == "" {
		return nil, models.NewDisabledError("blob store")
	}
	if opts.Access == "" {
		opts.Access = AccessPublic
	}

	pathname := SanitizeName(name)
	start := time.Now()

	a := fiber.Put(u.baseURL + "/" + url.PathEscape(pathname))
	a.Set("authorization", "Bearer "+u.token)
	a.Set("x-api-version", vercelAPIVersion)
	a.Set("access", string(opts.Access))
	a.Set("x-add-random-suffix", "1")
	if opts.ContentType != "" {
		a.Set("x-content-type", opts.ContentType)
	}
	a.Body(content)
	timeout, err := effectiveTimeout(ctx, u.timeout)
	if err != nil {
		return nil, models.NewUpstreamError("blob store", err)
	}
	if timeout > 0 {
		a.Timeout(timeout)
	}

	if err := a.Parse(); err != nil {
		return nil, models.NewUpstreamError("blob store", err)
	}
	code, body, errs := a.Bytes()
	middleware.UpstreamLatency.WithLabelValues("blob").Observe(time.Since(start).Seconds())
	if len(errs) > 0 {
		return nil, models.NewUpstreamError("blob store", errors.Join(errs...))
	}

	return parseVercelResponse(code, body)
}

func parseVercelResponse(code int, body []byte) (*Object, error) {
	res := gjson.ParseBytes(body)
	if code < 200 || code >= 300 {
		msg := res.Get("error.message").String()
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", code)
		}
		return nil, models.NewUpstreamError("blob store", errors.New(msg))
	}

	obj := &Object{
		URL:         res.Get("url").String(),
		DownloadURL: res.Get("downloadUrl").String(),
		Pathname:    res.Get("pathname").String(),
		ContentType: res.Get("contentType").String(),
	}
	if obj.URL == "" {
		return nil, models.NewUpstreamError("blob store", errors.New("response has no url"))
	}
	return obj, nil
}

// effectiveTimeout is the smaller of configured and the time left on ctx.
func effectiveTimeout(ctx context.Context, configured time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return configured, nil
	}
	remaining := time.Until(deadline)
	if configured <= 0 || remaining < configured {
		return remaining, nil
	}
	return configured, nil
}
