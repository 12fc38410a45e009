// Package order turns a submitted cart into a committed order.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/application"
	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	domain "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/order"
	domoutbox "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/outbox"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
)

const (
	orderService      = "order-service"
	useCasePlaceOrder = "order.place"
	spanPrefix        = "UC."
	publishPeer       = "outbox"
	publishEndpoint   = "order.placed"
	publishTimeout    = 300 * time.Millisecond
)

var ErrValidation = errors.New("order: invalid request")

// CartLine is one line as the storefront submitted it. ClientPrice and Name
// are informational; the committed price comes from the ledger.
type CartLine struct {
	ProductID   string
	Quantity    int
	ClientPrice decimal.NullDecimal
	Name        string
}

type PlaceOrderInput struct {
	UserID      string
	DisplayName string
	Cart        []CartLine
}

type PlaceOrderResult struct {
	OrderID string
	Total   decimal.Decimal
}

var _ application.UseCase[PlaceOrderInput, *PlaceOrderResult] = (*PlaceOrderUseCase)(nil)

// PlaceOrderUseCase validates a cart, commits it against the ledger and
// announces the order. Side effects downstream of the commit never fail the
// call.
type PlaceOrderUseCase struct {
	ledger      Ledger
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	tel         observability.Observability
	log         observability.Logger
	metrics     observability.Metrics
	now         func() time.Time
}

func NewPlaceOrderUseCase(
	ledger Ledger,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *PlaceOrderUseCase {
	return &PlaceOrderUseCase{
		ledger:      ledger,
		idGenerator: idGen,
		publisher:   publisher,
		tel:         tel,
		log:         observability.LoggerOf(tel).With(observability.F("service", orderService)),
		metrics:     observability.MetricsOf(tel),
		now:         time.Now,
	}
}

func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	ctx, op := observability.StartOp(ctx, uc.tel, logctx.FromOr(ctx, uc.log), useCasePlaceOrder, spanPrefix+"PlaceOrder",
		attribute.String("order.requester_id", cmd.UserID),
		attribute.Int("order.lines", len(cmd.Cart)),
	)
	defer func() { op.End(err) }()
	op.Add(observability.F("requester_id", cmd.UserID))

	if strings.TrimSpace(cmd.UserID) == "" {
		op.Fail("REQUESTER_REQUIRED")
		return nil, newValidation("requester id is required")
	}
	if len(cmd.Cart) == 0 {
		op.Fail("EMPTY_CART")
		return nil, newValidation("empty cart")
	}
	lines := make([]dominv.Line, 0, len(cmd.Cart))
	for _, c := range cmd.Cart {
		if strings.TrimSpace(c.ProductID) == "" {
			op.Fail("PRODUCT_ID_REQUIRED")
			return nil, newValidation("product id is required")
		}
		if c.Quantity <= 0 {
			op.Fail("QUANTITY_INVALID")
			return nil, newValidation(fmt.Sprintf("quantity for %s must be greater than zero", c.ProductID))
		}
		if c.Quantity > dominv.MaxLineQuantity {
			op.Fail("QUANTITY_INVALID")
			return nil, newValidation(fmt.Sprintf("quantity for %s must be at most %d", c.ProductID, dominv.MaxLineQuantity))
		}
		lines = append(lines, dominv.Line{ProductID: c.ProductID, Quantity: c.Quantity})
	}
	if err := ctx.Err(); err != nil {
		op.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	commit, err := uc.ledger.TryCommit(ctx, lines)
	if err != nil {
		switch {
		case errors.Is(err, dominv.ErrInsufficientStock):
			op.Fail("INSUFFICIENT_STOCK")
		case errors.Is(err, dominv.ErrPersistence):
			op.Fail("PERSISTENCE_FAILED")
		default:
			op.Fail("COMMIT_FAILED")
		}
		return nil, fmt.Errorf("order: commit: %w", err)
	}

	catalog := uc.ledger.Catalog()
	orderLines := make([]domain.Line, 0, len(commit.Lines))
	for i, cl := range commit.Lines {
		name := cmd.Cart[i].Name
		if catalog != nil {
			if p, ok := catalog.Lookup(cl.ProductID); ok {
				name = p.Name
			}
		}
		if name == "" {
			name = cl.ProductID
		}
		if client := cmd.Cart[i].ClientPrice; client.Valid && !client.Decimal.Equal(cl.UnitPrice) {
			op.Logger().Warn("client_price_mismatch",
				observability.F("product_id", cl.ProductID),
				observability.F("client_price", client.Decimal.String()),
				observability.F("ledger_price", cl.UnitPrice.String()),
			)
		}
		orderLines = append(orderLines, domain.Line{
			ProductID: cl.ProductID,
			Name:      name,
			Quantity:  cl.Quantity,
			UnitPrice: cl.UnitPrice,
		})
	}

	entity, derr := domain.New(uc.idGenerator.NewID(), domain.Requester{
		UserID:      cmd.UserID,
		DisplayName: cmd.DisplayName,
	}, orderLines, uc.now())
	if derr != nil {
		// Stock is already committed; the order record is the only thing lost.
		op.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, fmt.Errorf("order: construct: %w", derr)
	}
	op.Add(
		observability.F("order_id", entity.ID),
		observability.F("total", entity.Total.String()),
	)

	if uc.publisher != nil {
		// Stock is committed; the caller going away must not drop the event.
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		pubStart := time.Now()
		publishErr := uc.publisher.Publish(pubCtx, domain.NewOrderPlacedEvent(entity))
		cancel()
		observability.External(uc.metrics, publishPeer, publishEndpoint, pubStart, publishErr)
		if publishErr != nil {
			op.Status("EVENT_PUBLISH_FAILED")
			op.Add(observability.F("event_publish_error", publishErr.Error()))
		}
	}

	op.Event("order.placed",
		attribute.String("order.id", entity.ID),
		attribute.String("order.total", entity.Total.String()),
	)

	return &PlaceOrderResult{OrderID: entity.ID, Total: entity.Total}, nil
}

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
