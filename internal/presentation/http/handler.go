package httppresentation

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	appOrder "github.com/ZIKOpl/ZIKO-SHOP/internal/application/order"
	domainInventory "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/identity"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerSharedSecret   = "X-Shop-Secret"
	maxOrderBody         = 64 << 10
)

// OrderPlacer commits a storefront cart.
type OrderPlacer interface {
	Execute(ctx context.Context, in appOrder.PlaceOrderInput) (*appOrder.PlaceOrderResult, error)
}

// StockSource exposes the ledger's current tables.
type StockSource interface {
	Snapshot() domainInventory.Tables
	Catalog() *domainInventory.Catalog
}

// IdentityExchanger verifies a storefront visitor from an OAuth2 code.
type IdentityExchanger interface {
	Exchange(ctx context.Context, code string) (identity.User, error)
}

type Config struct {
	// SharedSecret, when set, must match the X-Shop-Secret header of POST /order.
	SharedSecret string
	// ShopPageURL receives the verified identity after /callback.
	ShopPageURL string
	// Metrics is mounted on /metrics when non-nil.
	Metrics http.Handler
}

type Handler struct {
	orders   OrderPlacer
	stock    StockSource
	identity IdentityExchanger
	cfg      Config
	log      observability.Logger
	tel      observability.Observability
}

// NewHandler builds the storefront API. identity may be nil when OAuth2 is
// not configured; /callback then answers 404.
func NewHandler(orders OrderPlacer, stock StockSource, identity IdentityExchanger, cfg Config, tel observability.Observability) *Handler {
	return &Handler{
		orders:   orders,
		stock:    stock,
		identity: identity,
		cfg:      cfg,
		log:      observability.LoggerOf(tel).With(observability.F("component", componentHTTPHandler)),
		tel:      tel,
	}
}

// Router wires each route behind Recoverer → Trace → request logger and
// metrics → access log.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.withTrace)
	r.Use(ObservabilityMiddleware(h.log, func(r *http.Request) string {
		return r.Header.Get(headerRequestID)
	}, h.tel))
	r.Use(h.withAccessLog)

	r.Get("/stock.json", h.handleStock)
	r.Get("/prices.json", h.handlePrices)
	r.Post("/order", h.handlePlaceOrder)
	r.Get("/callback", h.handleCallback)
	r.Get("/health", h.handleHealth)
	if h.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.cfg.Metrics)
	}
	return r
}

func (h *Handler) handleStock(w http.ResponseWriter, _ *http.Request) {
	snap := h.stock.Snapshot()
	body := make(map[string]int, len(snap.Quantities))
	for _, p := range h.stock.Catalog().Products() {
		body[p.ID] = snap.Quantity(p.ID)
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) handlePrices(w http.ResponseWriter, _ *http.Request) {
	snap := h.stock.Snapshot()
	body := make(map[string]json.Number, len(snap.Prices))
	for _, p := range h.stock.Catalog().Products() {
		if price, ok := snap.Price(p.ID); ok {
			body[p.ID] = json.Number(price.String())
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type cartItem struct {
	ProductID string              `json:"productId"`
	Qty       int                 `json:"qty"`
	Price     decimal.NullDecimal `json:"price"`
	Name      string              `json:"name"`
}

type placeOrderRequest struct {
	DiscordID string     `json:"discordId"`
	Username  string     `json:"username"`
	Cart      []cartItem `json:"cart"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeText(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOrderBody)).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cart := make([]appOrder.CartLine, 0, len(req.Cart))
	for _, c := range req.Cart {
		cart = append(cart, appOrder.CartLine{
			ProductID:   c.ProductID,
			Quantity:    c.Qty,
			ClientPrice: c.Price,
			Name:        c.Name,
		})
	}

	res, err := h.orders.Execute(r.Context(), appOrder.PlaceOrderInput{
		UserID:      req.DiscordID,
		DisplayName: req.Username,
		Cart:        cart,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("X-Order-ID", res.OrderID)
	writeText(w, http.StatusOK, "order accepted")
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.cfg.SharedSecret == "" {
		return true
	}
	got := r.Header.Get(headerSharedSecret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.SharedSecret)) == 1
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if h.identity == nil {
		writeText(w, http.StatusNotFound, "sign-in is not configured")
		return
	}
	user, err := h.identity.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		if errors.Is(err, identity.ErrMissingCode) {
			writeText(w, http.StatusBadRequest, "missing code")
			return
		}
		logctx.FromOr(r.Context(), h.log).Warn("identity_exchange_failed", observability.F("error", err))
		writeText(w, http.StatusBadGateway, "sign-in failed")
		return
	}

	if h.cfg.ShopPageURL == "" {
		writeJSON(w, http.StatusOK, map[string]string{"discordId": user.ID, "username": user.DisplayName()})
		return
	}
	target, err := url.Parse(h.cfg.ShopPageURL)
	if err != nil {
		writeText(w, http.StatusInternalServerError, "invalid shop page")
		return
	}
	q := target.Query()
	q.Set("discordId", user.ID)
	q.Set("username", user.DisplayName())
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var short *domainInventory.InsufficientStockError
	switch {
	case errors.As(err, &short):
		writeText(w, http.StatusBadRequest, short.Error())
	case errors.Is(err, appOrder.ErrValidation):
		writeText(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), appOrder.ErrValidation.Error()+": "))
	case errors.Is(err, domainInventory.ErrNotFound):
		writeText(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeText(w, http.StatusServiceUnavailable, "request canceled")
	default:
		logctx.FromOr(r.Context(), h.log).Error("order_failed", observability.F("error", err))
		writeText(w, http.StatusInternalServerError, "order failed")
	}
}
