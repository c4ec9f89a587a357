package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"vlogy/internal/assistant"
	"vlogy/internal/featureflags"
	"vlogy/internal/middleware"
	"vlogy/internal/models"
	"vlogy/internal/repository"

	"github.com/tidwall/gjson"
)

// Canned replies.
const (
	RestingReply = "Vlogy is resting today. Check your API key!"
	FailureReply = "I'm having trouble thinking right now!"
)

const promptPersona = "You are 'Vlogy', a travel assistant. Context:\n"

// ChatService answers travel questions using the feed as context.
type ChatService struct {
	posts      repository.PostRepository
	generator  assistant.Generator
	configured bool
	model      string
	flags      *featureflags.Manager
}

// ChatConfig wires the assistant. Configured is false when no API key is set.
type ChatConfig struct {
	Generator  assistant.Generator
	Configured bool
	Model      string
	Flags      *featureflags.Manager
}

func NewChatService(posts repository.PostRepository, cfg ChatConfig) *ChatService {
	model := cfg.Model
	if model == "" {
		model = assistant.DefaultModel
	}
	return &ChatService{
		posts:      posts,
		generator:  cfg.Generator,
		configured: cfg.Configured && cfg.Generator != nil,
		model:      model,
		flags:      cfg.Flags,
	}
}

// Available reports whether the assistant can answer for the caller in ctx.
func (s *ChatService) Available(ctx context.Context) bool {
	if !s.configured {
		return false
	}
	subject, _ := ctx.Value(middleware.UserEmailKey).(string)
	return s.flags.Enabled(featureflags.Assistant, subject)
}

// ParseMessage extracts the string "message" field from a JSON chat body.
func ParseMessage(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", models.NewValidationError("chat body is not valid JSON")
	}
	msg := gjson.GetBytes(body, "message")
	if !msg.Exists() || msg.Type != gjson.String {
		return "", models.NewValidationError("chat body has no message")
	}
	return msg.String(), nil
}

// BuildPrompt renders the persona, one "- title: desc" line per post and the user's message.
func BuildPrompt(posts []*models.Post, message string) string {
	lines := make([]string, 0, len(posts))
	for _, p := range posts {
		lines = append(lines, p.ContextLine())
	}

	var b strings.Builder
	b.WriteString(promptPersona)
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\nUser: ")
	b.WriteString(message)
	return b.String()
}

// Reply never fails outward: every error degrades to a canned reply.
func (s *ChatService) Reply(ctx context.Context, message string) (string, models.Outcome) {
	if !s.Available(ctx) {
		return RestingReply, s.record(ctx, models.OutcomeAssistantDisabled, nil)
	}

	posts, err := s.posts.List(ctx)
	if err != nil {
		return FailureReply, s.record(ctx, models.OutcomePersistFailed, err)
	}

	text, err := s.generator.Generate(ctx, s.model, BuildPrompt(posts, message))
	if err != nil {
		return FailureReply, s.record(ctx, models.OutcomeUpstreamUnavailable, err)
	}

	return text, s.record(ctx, models.OutcomeSuccess, nil)
}

// Respond handles a raw chat body. The resting reply wins over a malformed body.
func (s *ChatService) Respond(ctx context.Context, body []byte) (string, models.Outcome) {
	if !s.Available(ctx) {
		return RestingReply, s.record(ctx, models.OutcomeAssistantDisabled, nil)
	}
	message, err := ParseMessage(body)
	if err != nil {
		return s.Reject(ctx, err)
	}
	return s.Reply(ctx, message)
}

// Reject answers a request whose body could not be used.
func (s *ChatService) Reject(ctx context.Context, err error) (string, models.Outcome) {
	if err == nil {
		err = errors.New("invalid chat request")
	}
	return FailureReply, s.record(ctx, models.OutcomeInvalidRequest, err)
}

func (s *ChatService) record(ctx context.Context, outcome models.Outcome, err error) models.Outcome {
	middleware.ChatOutcomes.WithLabelValues(outcome.String()).Inc()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "chat degraded",
			slog.String("outcome", outcome.String()),
			slog.String("error", err.Error()),
		)
	}
	return outcome
}
