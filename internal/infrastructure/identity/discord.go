// Package identity verifies storefront visitors through the chat platform's
// OAuth2 authorization-code flow.
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

	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIBase  = "https://discord.com/api"
	identityPeer    = "discord_oauth"
	defaultTimeout  = 10 * time.Second
	userInfoPath    = "/users/@me"
	identifyScope   = "identify"
	maxUserInfoBody = 1 << 20
)

var (
	ErrMissingCode = errors.New("identity: authorization code is required")
	ErrExchange    = errors.New("identity: code exchange failed")
)

// User is the verified identity behind an authorization code.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

// DisplayName prefers the user's global display name.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// APIBase defaults to DefaultAPIBase; tests point it at a local server.
	APIBase string
	Timeout time.Duration
}

type Exchanger struct {
	oauth   *oauth2.Config
	apiBase string
	timeout time.Duration
	metrics observability.Metrics
}

func NewExchanger(cfg Config, tel observability.Observability) *Exchanger {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Exchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{identifyScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth2/authorize",
				TokenURL:  base + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBase: base,
		timeout: cfg.Timeout,
		metrics: observability.MetricsOf(tel),
	}
}

// AuthCodeURL is where the storefront sends visitors to sign in.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for the user it was issued to.
func (e *Exchanger) Exchange(ctx context.Context, code string) (User, error) {
	if strings.TrimSpace(code) == "" {
		return User{}, ErrMissingCode
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	tok, err := e.oauth.Exchange(ctx, code)
	observability.External(e.metrics, identityPeer, "token", start, err)
	if err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrExchange, err)
	}

	start = time.Now()
	user, err := e.fetchUser(ctx, e.oauth.Client(ctx, tok))
	observability.External(e.metrics, identityPeer, "users_me", start, err)
	if err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrExchange, err)
	}
	return user, nil
}

func (e *Exchanger) fetchUser(ctx context.Context, client *http.Client) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiBase+userInfoPath, nil)
	if err != nil {
		return User{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("user info: unexpected status %d", resp.StatusCode)
	}
	var u User
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBody)).Decode(&u); err != nil {
		return User{}, fmt.Errorf("user info: decode: %w", err)
	}
	if u.ID == "" {
		return User{}, errors.New("user info: missing id")
	}
	return u, nil
}
