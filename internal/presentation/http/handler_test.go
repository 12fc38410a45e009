package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appinv "github.com/ZIKOpl/ZIKO-SHOP/internal/application/inventory"
	appOrder "github.com/ZIKOpl/ZIKO-SHOP/internal/application/order"
	domainInventory "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/identity"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/memory"
	infraobs "github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/observability/prometrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("order-%d", s.n)
}

type stubIdentity struct {
	user identity.User
	err  error
}

func (s stubIdentity) Exchange(_ context.Context, code string) (identity.User, error) {
	if code == "" {
		return identity.User{}, identity.ErrMissingCode
	}
	return s.user, s.err
}

type server struct {
	srv    *httptest.Server
	ledger *appinv.Ledger
	store  *memory.Store
}

func newServer(t *testing.T, ident IdentityExchanger, cfg Config) *server {
	t.Helper()
	ctx := context.Background()
	catalog, err := domainInventory.NewCatalog([]domainInventory.Product{
		{ID: "nitro1m", Name: "Nitro 1 mois", Price: decimal.RequireFromString("1.5"), InitialStock: 1},
		{ID: "boost1y", Name: "Nitro Boost 1 an", Price: decimal.NewFromInt(30), InitialStock: 4},
	})
	require.NoError(t, err)
	store := memory.NewStore()
	ledger, err := appinv.Open(ctx, store, catalog, nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	tel := infraobs.FromRegistry(nil, nil, prometrics.New("", reg))
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	uc := appOrder.NewPlaceOrderUseCase(ledger, &seqIDs{}, nil, tel)
	h := NewHandler(uc, ledger, ident, cfg, tel)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &server{srv: srv, ledger: ledger, store: store}
}

func (s *server) do(t *testing.T, method, path, body string, header map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestStockAndPrices(t *testing.T) {
	s := newServer(t, nil, Config{})

	resp, body := s.do(t, http.MethodGet, "/stock.json", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"nitro1m":1,"boost1y":4}`, body)

	resp, body = s.do(t, http.MethodGet, "/prices.json", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"nitro1m":1.5,"boost1y":30}`, body)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	require.IsType(t, float64(0), raw["nitro1m"])
}

func TestPlaceOrder(t *testing.T) {
	s := newServer(t, nil, Config{})

	resp, body := s.do(t, http.MethodPost, "/order",
		`{"discordId":"42","username":"alice","cart":[{"productId":"nitro1m","qty":1,"price":1.5,"name":"Nitro 1 mois"},{"productId":"boost1y","qty":2,"price":"30","name":"Boost"}]}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "order accepted", body)
	require.NotEmpty(t, resp.Header.Get("X-Order-ID"))
	require.NotEmpty(t, resp.Header.Get(headerRequestID))

	snap := s.ledger.Snapshot()
	require.Equal(t, 0, snap.Quantity("nitro1m"))
	require.Equal(t, 2, snap.Quantity("boost1y"))
}

func TestPlaceOrder_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"empty cart", `{"discordId":"42","username":"alice","cart":[]}`, http.StatusBadRequest, "empty cart"},
		{"missing cart", `{"discordId":"42","username":"alice"}`, http.StatusBadRequest, "empty cart"},
		{"insufficient stock", `{"discordId":"42","cart":[{"productId":"nitro1m","qty":2}]}`, http.StatusBadRequest, "insufficient stock for nitro1m"},
		{"mixed cart", `{"discordId":"42","cart":[{"productId":"boost1y","qty":1},{"productId":"nitro1m","qty":5}]}`, http.StatusBadRequest, "insufficient stock for nitro1m"},
		{"zero quantity", `{"discordId":"42","cart":[{"productId":"nitro1m","qty":0}]}`, http.StatusBadRequest, "quantity for nitro1m must be greater than zero"},
		{"overflowing duplicate lines", `{"discordId":"42","cart":[{"productId":"nitro1m","qty":9223372036854775807},{"productId":"nitro1m","qty":9223372036854775807}]}`, http.StatusBadRequest, "quantity for nitro1m must be at most 1000000"},
		{"missing requester", `{"cart":[{"productId":"nitro1m","qty":1}]}`, http.StatusBadRequest, "requester id is required"},
		{"malformed", `{"cart":`, http.StatusBadRequest, "invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newServer(t, nil, Config{})
			before := s.ledger.Snapshot()

			resp, body := s.do(t, http.MethodPost, "/order", tc.body, nil)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, tc.want, body)
			require.Equal(t, before, s.ledger.Snapshot())
		})
	}
}

func TestPlaceOrder_PersistenceFailure(t *testing.T) {
	s := newServer(t, nil, Config{})
	s.store.FailSaves(errors.New("disk full"))

	resp, body := s.do(t, http.MethodPost, "/order", `{"discordId":"42","cart":[{"productId":"boost1y","qty":1}]}`, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "order failed", body)
	require.Equal(t, 4, s.ledger.Snapshot().Quantity("boost1y"))
}

func TestPlaceOrder_SharedSecret(t *testing.T) {
	s := newServer(t, nil, Config{SharedSecret: "s3cret"})
	order := `{"discordId":"42","cart":[{"productId":"boost1y","qty":1}]}`

	resp, _ := s.do(t, http.MethodPost, "/order", order, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/order", order, map[string]string{headerSharedSecret: "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 4, s.ledger.Snapshot().Quantity("boost1y"))

	resp, _ = s.do(t, http.MethodPost, "/order", order, map[string]string{headerSharedSecret: "s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCallback(t *testing.T) {
	ident := stubIdentity{user: identity.User{ID: "42", Username: "alice", GlobalName: "Alice"}}

	s := newServer(t, ident, Config{ShopPageURL: "https://shop.example/shop.html"})
	resp, _ := s.do(t, http.MethodGet, "/callback?code=abc", "", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "https://shop.example/shop.html?discordId=42&username=Alice", resp.Header.Get("Location"))

	resp, body := s.do(t, http.MethodGet, "/callback", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "missing code", body)

	s = newServer(t, ident, Config{})
	resp, body = s.do(t, http.MethodGet, "/callback?code=abc", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"discordId":"42","username":"Alice"}`, body)

	s = newServer(t, stubIdentity{err: identity.ErrExchange}, Config{})
	resp, _ = s.do(t, http.MethodGet, "/callback?code=abc", "", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	s = newServer(t, nil, Config{})
	resp, _ = s.do(t, http.MethodGet, "/callback?code=abc", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, nil, Config{})

	resp, body := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body)

	resp, _ = s.do(t, http.MethodPost, "/order", `{"discordId":"42","cart":[{"productId":"boost1y","qty":1}]}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `http_requests_total{method="POST",route="/order",status="200"} 1`)
	require.Contains(t, body, `usecase_requests_total{outcome="success",use_case="order.place"} 1`)
}

func TestRequestIDEchoed(t *testing.T) {
	s := newServer(t, nil, Config{})
	resp, _ := s.do(t, http.MethodGet, "/health", "", map[string]string{headerRequestID: "req-1"})
	require.Equal(t, "req-1", resp.Header.Get(headerRequestID))
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t, nil, Config{})
	resp, _ := s.do(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
