package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newDiscordStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		require.Equal(t, "client", r.PostForm.Get("client_id"))
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"42","username":"alice","global_name":"Alice"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExchange(t *testing.T) {
	srv := newDiscordStub(t)
	e := NewExchanger(Config{ClientID: "client", ClientSecret: "secret", RedirectURL: "http://shop/callback", APIBase: srv.URL}, nil)

	u, err := e.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	require.Equal(t, User{ID: "42", Username: "alice", GlobalName: "Alice"}, u)
	require.Equal(t, "Alice", u.DisplayName())
}

func TestExchange_Failures(t *testing.T) {
	srv := newDiscordStub(t)
	e := NewExchanger(Config{ClientID: "client", ClientSecret: "secret", APIBase: srv.URL}, nil)

	_, err := e.Exchange(context.Background(), "  ")
	require.ErrorIs(t, err, ErrMissingCode)

	_, err = e.Exchange(context.Background(), "bad-code")
	require.ErrorIs(t, err, ErrExchange)
}

func TestAuthCodeURL(t *testing.T) {
	e := NewExchanger(Config{ClientID: "client", RedirectURL: "http://shop/callback"}, nil)
	url := e.AuthCodeURL("xyz")
	require.Contains(t, url, "https://discord.com/api/oauth2/authorize?")
	require.Contains(t, url, "scope=identify")
	require.Contains(t, url, "state=xyz")
}

func TestUser_DisplayNameFallsBack(t *testing.T) {
	require.Equal(t, "bob", User{ID: "1", Username: "bob"}.DisplayName())
}
