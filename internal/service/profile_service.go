package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vlogy/internal/identity"
	"vlogy/internal/middleware"
	"vlogy/internal/models"
)

// IdentityProvider is the part of the login delegate the services need.
type IdentityProvider interface {
	Authorized(sess identity.SessionValues) bool
	Get(ctx context.Context, sess identity.SessionValues, path string) (*identity.Response, error)
}

// ProfileService resolves the signed-in user's email from the provider.
type ProfileService struct {
	identity IdentityProvider
}

func NewProfileService(provider IdentityProvider) *ProfileService {
	return &ProfileService{identity: provider}
}

// Refresh fetches the profile when the session holds an authorized token.
// OutcomeNotAuthenticated means no fetch was attempted; every other
// non-success outcome is a failed fetch.
func (s *ProfileService) Refresh(ctx context.Context, sess identity.SessionValues) (string, models.Outcome) {
	if s.identity == nil || !s.identity.Authorized(sess) {
		return "", models.OutcomeNotAuthenticated
	}

	resp, err := s.identity.Get(ctx, sess, identity.UserInfoPath)
	if err != nil {
		return "", s.record(ctx, models.OutcomeUpstreamUnavailable, err)
	}
	if !resp.OK() {
		return "", s.record(ctx, models.OutcomeUpstreamUnavailable, fmt.Errorf("userinfo returned status %d", resp.StatusCode))
	}

	email := strings.TrimSpace(resp.JSON("email"))
	if email == "" {
		return "", s.record(ctx, models.OutcomeInvalidRequest, fmt.Errorf("userinfo response has no email"))
	}

	return email, s.record(ctx, models.OutcomeSuccess, nil)
}

func (s *ProfileService) record(ctx context.Context, outcome models.Outcome, err error) models.Outcome {
	middleware.ProfileRefreshOutcomes.WithLabelValues(outcome.String()).Inc()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "profile refresh failed",
			slog.String("outcome", outcome.String()),
			slog.String("error", err.Error()),
		)
	}
	return outcome
}
