// Package interaction routes chat-platform component and form interactions
// to the admin surface and the ticket manager.
package interaction

import (
	"context"
	"errors"
	"strings"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/application/admin"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/application/fulfillment"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"
)

type Kind int

const (
	// KindComponent is a button press or a select menu choice.
	KindComponent Kind = iota + 1
	// KindFormSubmit is a submitted form.
	KindFormSubmit
)

// Request is a platform-neutral interaction.
type Request struct {
	Kind      Kind
	CustomID  string
	Values    []string
	Fields    map[string]string
	UserID    string
	ChannelID string
}

// Response is the reply to an interaction. When Form is set the platform
// opens it instead of replying with Content. After, when set, runs once the
// reply has been sent.
type Response struct {
	Content   string
	Ephemeral bool
	Form      *chat.Form
	After     func(ctx context.Context)
}

type AdminSurface interface {
	OpenForm(ctx context.Context, actorID string, a admin.Action) (chat.Form, error)
	Submit(ctx context.Context, actorID string, a admin.Action, raw string) (*admin.Result, error)
}

// TicketCloser authorizes a close and removes the ticket separately, so the
// reply reaches the channel before it is deleted.
type TicketCloser interface {
	CanClose(ctx context.Context, channelID, actorID, ownerID string) error
	Remove(ctx context.Context, channelID string) error
}

const (
	msgStaffOnly     = "⛔ This action is reserved for staff."
	msgNotOwner      = "⛔ Only the customer or staff can close this order."
	msgUnknown       = "❓ This action is no longer available."
	msgFailed        = "❌ Something went wrong, please try again."
	msgPersistFailed = "❌ The change could not be saved, nothing was modified."
	msgClosed        = "🗑️ Order closed."
)

type Router struct {
	admin   AdminSurface
	tickets TicketCloser
	log     observability.Logger
}

func NewRouter(surface AdminSurface, tickets TicketCloser, tel observability.Observability) *Router {
	return &Router{
		admin:   surface,
		tickets: tickets,
		log:     observability.LoggerOf(tel).With(observability.F("component", "interaction_router")),
	}
}

// Handle dispatches req. It never returns an error: failures become
// ephemeral replies.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	ctx, log := logctx.Enrich(ctx, r.log,
		observability.F("custom_id", req.CustomID),
		observability.F("user_id", req.UserID),
	)

	switch req.Kind {
	case KindComponent:
		if req.CustomID == admin.PanelMenuID {
			return r.openForm(ctx, log, req)
		}
		if owner, ok := fulfillment.ParseCloseButtonID(req.CustomID); ok {
			return r.closeTicket(ctx, log, req, owner)
		}
	case KindFormSubmit:
		return r.submit(ctx, log, req)
	}
	log.Warn("interaction_unrouted", observability.F("kind", int(req.Kind)))
	return ephemeral(msgUnknown)
}

func (r *Router) openForm(ctx context.Context, log observability.Logger, req Request) Response {
	if len(req.Values) == 0 {
		return ephemeral(msgUnknown)
	}
	a, err := admin.DecodeAction(req.Values[0])
	if err != nil {
		return ephemeral(msgUnknown)
	}
	form, err := r.admin.OpenForm(ctx, req.UserID, a)
	if err != nil {
		return reply(log, err)
	}
	return Response{Form: &form}
}

func (r *Router) submit(ctx context.Context, log observability.Logger, req Request) Response {
	a, err := admin.DecodeAction(req.CustomID)
	if err != nil {
		return ephemeral(msgUnknown)
	}
	res, err := r.admin.Submit(ctx, req.UserID, a, req.Fields[admin.ValueFieldID])
	if err != nil {
		return reply(log, err)
	}
	return ephemeral(res.Message)
}

func (r *Router) closeTicket(ctx context.Context, log observability.Logger, req Request, owner string) Response {
	if err := r.tickets.CanClose(ctx, req.ChannelID, req.UserID, owner); err != nil {
		return reply(log, err)
	}
	resp := ephemeral(msgClosed)
	resp.After = func(ctx context.Context) {
		if err := r.tickets.Remove(ctx, req.ChannelID); err != nil {
			log.Error("ticket_remove_failed", observability.F("error", err))
		}
	}
	return resp
}

func reply(log observability.Logger, err error) Response {
	switch {
	case errors.Is(err, admin.ErrUnauthorized):
		return ephemeral(msgStaffOnly)
	case errors.Is(err, fulfillment.ErrUnauthorized):
		return ephemeral(msgNotOwner)
	case errors.Is(err, admin.ErrUnknownAction):
		return ephemeral(msgUnknown)
	case errors.Is(err, admin.ErrValidation):
		return ephemeral("❌ " + strings.TrimPrefix(err.Error(), admin.ErrValidation.Error()+": "))
	case errors.Is(err, dominv.ErrPersistence):
		log.Error("interaction_failed", observability.F("error", err))
		return ephemeral(msgPersistFailed)
	default:
		log.Error("interaction_failed", observability.F("error", err))
		return ephemeral(msgFailed)
	}
}

func ephemeral(content string) Response {
	return Response{Content: content, Ephemeral: true}
}
