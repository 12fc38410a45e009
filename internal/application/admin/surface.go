package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/application/display"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	domdisplay "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/display"
	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	domoutbox "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/outbox"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
)

const (
	adminService    = "admin-surface"
	useCaseOpenForm = "admin.open_form"
	useCaseSubmit   = "admin.submit"
	useCasePanel    = "admin.publish_panel"
	spanPrefix      = "UC."
	platformPeer    = "chat"
	publishPeer     = "outbox"
	publishTimeout  = 300 * time.Millisecond
	defaultTimeout  = 5 * time.Second

	// PanelMenuID is the custom id of the admin select menu.
	PanelMenuID = "admin:panel"
	// ValueFieldID is the custom id of the single form input.
	ValueFieldID = "value"
	// maxMenuOptions is the platform's select menu option limit.
	maxMenuOptions = 25
)

var ErrUnauthorized = errors.New("admin: staff only")

// Ledger is the slice of the inventory ledger staff may mutate.
type Ledger interface {
	Adjust(ctx context.Context, productID string, delta int) (before, after int, err error)
	SetPrice(ctx context.Context, productID string, price decimal.Decimal) error
	Snapshot() dominv.Tables
	Catalog() *dominv.Catalog
}

type Config struct {
	ChannelID string
	Branding  display.Branding
	Timeout   time.Duration
}

// Surface runs the two-step admin flow: pick an action from the panel, then
// submit one value through a form. Staff membership is checked again at
// submit time with a fresh platform lookup.
type Surface struct {
	ledger    Ledger
	platform  chat.Platform
	registry  *display.Registry
	publisher domoutbox.Publisher
	cfg       Config

	tel     observability.Observability
	log     observability.Logger
	metrics observability.Metrics
}

func NewSurface(ledger Ledger, platform chat.Platform, registry *display.Registry, publisher domoutbox.Publisher, cfg Config, tel observability.Observability) *Surface {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Surface{
		ledger:    ledger,
		platform:  platform,
		registry:  registry,
		publisher: publisher,
		cfg:       cfg,
		tel:       tel,
		log:       observability.LoggerOf(tel).With(observability.F("service", adminService)),
		metrics:   observability.MetricsOf(tel),
	}
}

// Panel renders the admin panel: every action for every product.
func (s *Surface) Panel() chat.Message {
	catalog := s.ledger.Catalog()
	options := make([]chat.SelectOption, 0, len(Kinds)*len(catalog.Products()))
	for _, p := range catalog.Products() {
		for _, k := range Kinds {
			a := Action{Kind: k, ProductID: p.ID}
			options = append(options, chat.SelectOption{Label: a.Label(catalog), Value: a.Encode()})
		}
	}
	if len(options) > maxMenuOptions {
		s.log.Warn("admin_panel_truncated",
			observability.F("options", len(options)),
			observability.F("limit", maxMenuOptions),
		)
		options = options[:maxMenuOptions]
	}
	return chat.Message{
		Embeds: []chat.Embed{{
			Title:       "🔧 Admin panel",
			Description: "Pick an action to change stock or prices. Staff only.",
			Color:       chat.ColorRed,
			Footer:      s.cfg.Branding.WithDefaults().ShopName,
		}},
		Select: &chat.SelectMenu{
			CustomID:    PanelMenuID,
			Placeholder: "Choose an action",
			Options:     options,
		},
	}
}

// PublishPanel posts the panel in the admin channel, or edits the one posted
// before, and records its id.
func (s *Surface) PublishPanel(ctx context.Context) (err error) {
	ctx, op := observability.StartOp(ctx, s.tel, logctx.FromOr(ctx, s.log), useCasePanel, spanPrefix+"PublishAdminPanel",
		attribute.String("admin.channel_id", s.cfg.ChannelID),
	)
	defer func() { op.End(err) }()

	current := s.registry.Current().AdminMessageID
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	start := time.Now()
	id, err := display.EditOrSend(callCtx, s.platform, s.cfg.ChannelID, current, s.Panel())
	cancel()
	observability.External(s.metrics, platformPeer, "upsert_admin_panel", start, err)
	if err != nil {
		op.Fail("PLATFORM_FAILED")
		return fmt.Errorf("admin: publish panel: %w", err)
	}
	if id != current {
		op.Status("MESSAGE_REPLACED")
		return s.registry.Update(ctx, func(st *domdisplay.State) { st.AdminMessageID = id })
	}
	return nil
}

// FormFor is the single-field form soliciting the action's value.
func (s *Surface) FormFor(a Action) chat.Form {
	name := s.ledger.Catalog().Name(a.ProductID)
	f := chat.Form{
		CustomID: a.Encode(),
		Fields: []chat.FormField{{
			CustomID:  ValueFieldID,
			Required:  true,
			MinLength: 1,
			MaxLength: 12,
		}},
	}
	switch a.Kind {
	case IncreaseStock:
		f.Title = "Add stock: " + name
		f.Fields[0].Label = "Quantity to add"
		f.Fields[0].Placeholder = "5"
	case DecreaseStock:
		f.Title = "Remove stock: " + name
		f.Fields[0].Label = "Quantity to remove"
		f.Fields[0].Placeholder = "1"
	case SetPrice:
		f.Title = "Set price: " + name
		f.Fields[0].Label = "New price"
		f.Fields[0].Placeholder = "9.99"
	}
	return f
}

// OpenForm checks the caller is staff and returns the form for the selected action.
func (s *Surface) OpenForm(ctx context.Context, actorID string, a Action) (_ chat.Form, err error) {
	ctx, op := observability.StartOp(ctx, s.tel, logctx.FromOr(ctx, s.log), useCaseOpenForm, spanPrefix+"OpenAdminForm",
		attribute.String("admin.actor_id", actorID),
		attribute.String("admin.action", a.Kind.String()),
	)
	defer func() { op.End(err) }()

	if err := s.authorize(ctx, actorID); err != nil {
		op.Fail(authStatus(err))
		return chat.Form{}, err
	}
	if err := s.validateAction(a); err != nil {
		op.Fail("UNKNOWN_ACTION")
		return chat.Form{}, err
	}
	return s.FormFor(a), nil
}

// Result is the confirmation shown to the staff member.
type Result struct {
	Action  Action
	Message string
}

// Submit applies a form submission. Nothing changes unless the actor is
// staff right now and raw parses for the action.
func (s *Surface) Submit(ctx context.Context, actorID string, a Action, raw string) (_ *Result, err error) {
	ctx, op := observability.StartOp(ctx, s.tel, logctx.FromOr(ctx, s.log), useCaseSubmit, spanPrefix+"SubmitAdminAction",
		attribute.String("admin.actor_id", actorID),
		attribute.String("admin.action", a.Kind.String()),
		attribute.String("product.id", a.ProductID),
	)
	defer func() { op.End(err) }()
	op.Add(
		observability.F("actor_id", actorID),
		observability.F("action", a.Kind.String()),
		observability.F("product_id", a.ProductID),
	)

	if err := s.authorize(ctx, actorID); err != nil {
		op.Fail(authStatus(err))
		return nil, err
	}
	if err := s.validateAction(a); err != nil {
		op.Fail("UNKNOWN_ACTION")
		return nil, err
	}

	name := s.ledger.Catalog().Name(a.ProductID)
	var (
		evt domoutbox.Event
		msg string
	)
	switch a.Kind {
	case IncreaseStock, DecreaseStock:
		qty, perr := ParseQuantity(raw)
		if perr != nil {
			op.Fail("VALIDATION_FAILED")
			return nil, perr
		}
		delta := qty
		if a.Kind == DecreaseStock {
			delta = -qty
		}
		before, after, aerr := s.ledger.Adjust(ctx, a.ProductID, delta)
		if aerr != nil {
			op.Fail(statusFor(aerr))
			return nil, fmt.Errorf("admin: adjust: %w", aerr)
		}
		evt = dominv.NewStockAdjustedEvent(a.ProductID, before, after, actorID)
		msg = fmt.Sprintf("✅ Stock for %s: %d → %d", name, before, after)
		op.Add(observability.F("before", before), observability.F("after", after))
	case SetPrice:
		price, perr := ParsePrice(raw, s.cfg.Branding.WithDefaults().Currency)
		if perr != nil {
			op.Fail("VALIDATION_FAILED")
			return nil, perr
		}
		if serr := s.ledger.SetPrice(ctx, a.ProductID, price); serr != nil {
			op.Fail(statusFor(serr))
			return nil, fmt.Errorf("admin: set price: %w", serr)
		}
		evt = dominv.NewPriceChangedEvent(a.ProductID, price, actorID)
		msg = fmt.Sprintf("✅ Price for %s is now %s", name, s.cfg.Branding.Money(price))
		op.Add(observability.F("price", price.String()))
	}

	s.publish(ctx, op, evt)
	return &Result{Action: a, Message: msg}, nil
}

func (s *Surface) authorize(ctx context.Context, actorID string) error {
	if actorID == "" {
		return ErrUnauthorized
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	start := time.Now()
	staff, err := s.platform.IsStaff(callCtx, actorID)
	observability.External(s.metrics, platformPeer, "is_staff", start, err)
	if err != nil {
		return fmt.Errorf("admin: check staff: %w", err)
	}
	if !staff {
		return ErrUnauthorized
	}
	return nil
}

func (s *Surface) validateAction(a Action) error {
	if _, ok := kindTokens[a.Kind]; !ok {
		return fmt.Errorf("%w: kind %d", ErrUnknownAction, int(a.Kind))
	}
	if _, ok := s.ledger.Catalog().Lookup(a.ProductID); !ok {
		return fmt.Errorf("%w: product %q", ErrUnknownAction, a.ProductID)
	}
	return nil
}

func (s *Surface) publish(ctx context.Context, op *observability.Op, evt domoutbox.Event) {
	if s.publisher == nil || evt == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	start := time.Now()
	err := s.publisher.Publish(pubCtx, evt)
	observability.External(s.metrics, publishPeer, evt.EventName(), start, err)
	if err != nil {
		op.Status("EVENT_PUBLISH_FAILED")
		op.Add(observability.F("event_publish_error", err.Error()))
	}
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, dominv.ErrNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, dominv.ErrInvalidPrice):
		return "VALIDATION_FAILED"
	case errors.Is(err, dominv.ErrPersistence):
		return "PERSISTENCE_FAILED"
	default:
		return "FAILED"
	}
}

func authStatus(err error) string {
	if errors.Is(err, ErrUnauthorized) {
		return "UNAUTHORIZED"
	}
	return "AUTHORIZATION_LOOKUP_FAILED"
}
