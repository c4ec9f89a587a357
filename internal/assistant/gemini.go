// Package assistant is a client for the Gemini generateContent API.
package assistant

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

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Generator produces a single completion for prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Gemini calls the Generative Language REST API.
type Gemini struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewGemini returns a client for the API at baseURL.
func NewGemini(baseURL, apiKey string, timeout time.Duration) *Gemini {
	return &Gemini{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
}

// Configured reports whether an API key is set.
func (g *Gemini) Configured() bool {
	return g != nil && strings.TrimSpace(g.apiKey) != ""
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

// Generate sends prompt as a single user turn and returns the concatenated text parts of the first candidate.
func (g *Gemini) Generate(ctx context.Context, model, prompt string) (text string, err error) {
	ctx, span := observability.StartClientSpan(ctx, "assistant", "generateContent")
	defer func() { observability.EndSpan(span, err) }()

	if !g.Configured() {
		return "", models.NewDisabledError("assistant")
	}
	if model == "" {
		model = DefaultModel
	}
	if err := ctx.Err(); err != nil {
		return "", models.NewUpstreamError("assistant", err)
	}

	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}

	a := fiber.Post(fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(model)))
	a.Set("x-goog-api-key", g.apiKey)
	a.JSON(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if timeout > 0 {
		a.Timeout(timeout)
	}
	if err := a.Parse(); err != nil {
		return "", models.NewUpstreamError("assistant", err)
	}

	start := time.Now()
	code, body, errs := a.Bytes()
	middleware.UpstreamLatency.WithLabelValues("assistant").Observe(time.Since(start).Seconds())
	if len(errs) > 0 {
		return "", models.NewUpstreamError("assistant", errors.Join(errs...))
	}

	return parseGenerateResponse(code, body)
}

func parseGenerateResponse(code int, body []byte) (string, error) {
	res := gjson.ParseBytes(body)
	if msg := res.Get("error.message").String(); msg != "" {
		return "", models.NewUpstreamError("assistant", errors.New(msg))
	}
	if code < 200 || code >= 300 {
		return "", models.NewUpstreamError("assistant", fmt.Errorf("unexpected status %d", code))
	}
	if !res.IsObject() {
		return "", models.NewUpstreamError("assistant", errors.New("malformed response"))
	}

	var b strings.Builder
	for _, t := range res.Get("candidates.0.content.parts.#.text").Array() {
		b.WriteString(t.String())
	}
	if strings.TrimSpace(b.String()) == "" {
		reason := res.Get("promptFeedback.blockReason").String()
		if reason == "" {
			reason = res.Get("candidates.0.finishReason").String()
		}
		if reason != "" {
			return "", models.NewUpstreamError("assistant", fmt.Errorf("empty response: %s", reason))
		}
		return "", models.NewUpstreamError("assistant", errors.New("empty response"))
	}
	return b.String(), nil
}
