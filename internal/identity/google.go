// Package identity delegates login to Google OAuth2 and keeps the resulting
// token in the server-side session.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vlogy/internal/middleware"
	"vlogy/internal/models"
	"vlogy/internal/observability"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Session keys private to the delegate.
const (
	TokenKey = "google_oauth_token"
	StateKey = "google_oauth_state"
)

// UserInfoPath is the provider endpoint returning the signed-in profile.
const UserInfoPath = "/oauth2/v1/userinfo"

const stateTTL = 10 * time.Minute

// SessionValues is the part of a session the delegate reads and writes.
type SessionValues interface {
	Get(key string) interface{}
	Set(key string, val interface{})
	Delete(key string)
}

// Config configures the Google delegate. Zero AuthURL, TokenURL and
// APIBaseURL select Google's production endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	StateSecret  string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	Timeout      time.Duration
}

// Google is the OAuth2 login delegate.
type Google struct {
	oauth       *oauth2.Config
	apiBase     string
	stateSecret []byte
	timeout     time.Duration
	sessions    *fibersession.Store
}

// NewGoogle builds the delegate. sessions backs the Login and Callback handlers.
func NewGoogle(cfg Config, sessions *fibersession.Store) *Google {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = "https://www.googleapis.com"
	}

	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
		},
		apiBase:     strings.TrimRight(apiBase, "/"),
		stateSecret: []byte(cfg.StateSecret),
		timeout:     cfg.Timeout,
		sessions:    sessions,
	}
}

// Enabled reports whether an OAuth client is configured.
func (g *Google) Enabled() bool {
	return g != nil && g.oauth.ClientID != "" && g.oauth.ClientSecret != ""
}

func loadToken(sess SessionValues) (*oauth2.Token, bool) {
	raw, ok := sess.Get(TokenKey).(string)
	if !ok || raw == "" {
		return nil, false
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil || tok.AccessToken == "" {
		return nil, false
	}
	return &tok, true
}

func storeToken(sess SessionValues, tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	sess.Set(TokenKey, string(raw))
	return nil
}

// Authorized reports whether the session holds a token that is valid or can be refreshed.
func (g *Google) Authorized(sess SessionValues) bool {
	if !g.Enabled() || sess == nil {
		return false
	}
	tok, ok := loadToken(sess)
	if !ok {
		return false
	}
	return tok.Valid() || tok.RefreshToken != ""
}

// Response is the raw result of an authenticated provider call.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON returns the string at the gjson path, or "" when absent.
func (r *Response) JSON(path string) string {
	return gjson.GetBytes(r.Body, path).String()
}

// Get performs an authenticated GET of path against the provider API.
// A refreshed token is written back to sess.
func (g *Google) Get(ctx context.Context, sess SessionValues, path string) (resp *Response, err error) {
	ctx, span := observability.StartClientSpan(ctx, "identity", "get")
	defer func() { observability.EndSpan(span, err) }()

	if !g.Enabled() {
		return nil, models.NewDisabledError("google login")
	}
	tok, ok := loadToken(sess)
	if !ok {
		return nil, models.NewUnauthorizedError("no oauth token in session")
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	fresh, err := g.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, models.NewUpstreamError("identity provider", fmt.Errorf("refresh token: %w", err))
	}
	if fresh.AccessToken != tok.AccessToken {
		if err := storeToken(sess, fresh); err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	start := time.Now()
	httpResp, err := oauth2.NewClient(ctx, oauth2.StaticTokenSource(fresh)).Do(req)
	middleware.UpstreamLatency.WithLabelValues("identity").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, models.NewUpstreamError("identity provider", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, models.NewUpstreamError("identity provider", err)
	}
	return &Response{StatusCode: httpResp.StatusCode, Body: body}, nil
}

type stateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

func (g *Google) signState(nonce string) (string, error) {
	now := time.Now()
	claims := stateClaims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.stateSecret)
}

func (g *Google) verifyState(state, expectedNonce string) error {
	if state == "" || expectedNonce == "" {
		return errors.New("missing oauth state")
	}
	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(*jwt.Token) (interface{}, error) {
		return g.stateSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("invalid oauth state: %w", err)
	}
	if claims.Nonce != expectedNonce {
		return errors.New("oauth state nonce mismatch")
	}
	return nil
}

// Login redirects the browser to the provider consent page.
func (g *Google) Login(c *fiber.Ctx) error {
	if !g.Enabled() {
		middleware.Logger.WarnContext(c.UserContext(), "google login requested but oauth client is not configured")
		return c.Redirect("/", fiber.StatusFound)
	}

	sess, err := g.sessions.Get(c)
	if err != nil {
		return err
	}

	nonce := uuid.NewString()
	state, err := g.signState(nonce)
	if err != nil {
		return err
	}
	sess.Set(StateKey, nonce)
	if err := sess.Save(); err != nil {
		return err
	}

	return c.Redirect(g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), fiber.StatusFound)
}

// Callback completes the authorization code flow and always redirects to "/".
func (g *Google) Callback(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sess, err := g.sessions.Get(c)
	if err != nil {
		return err
	}

	if err := g.complete(c, sess); err != nil {
		middleware.Logger.WarnContext(ctx, "google login failed", "error", err)
		sess.Delete(TokenKey)
	}
	sess.Delete(StateKey)
	if err := sess.Save(); err != nil {
		return err
	}
	return c.Redirect("/", fiber.StatusFound)
}

func (g *Google) complete(c *fiber.Ctx, sess SessionValues) error {
	if !g.Enabled() {
		return models.NewDisabledError("google login")
	}
	if reason := c.Query("error"); reason != "" {
		return fmt.Errorf("provider returned error: %s", reason)
	}

	nonce, _ := sess.Get(StateKey).(string)
	if err := g.verifyState(c.Query("state"), nonce); err != nil {
		return err
	}

	code := c.Query("code")
	if code == "" {
		return models.NewValidationError("missing authorization code")
	}

	ctx := c.UserContext()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return models.NewUpstreamError("identity provider", err)
	}
	return storeToken(sess, tok)
}
