// Package fulfillment opens one private channel per committed order and
// closes it on request.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/application/display"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	domain "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/fulfillment"
	domorder "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/order"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/pkg/retry"

	"go.opentelemetry.io/otel/attribute"
)

const (
	fulfillmentService = "fulfillment"
	useCaseOpen        = "fulfillment.open"
	useCaseClose       = "fulfillment.close"
	useCaseAuthorize   = "fulfillment.authorize_close"
	spanPrefix         = "UC."
	platformPeer       = "chat"
	defaultTimeout     = 5 * time.Second

	closeButtonPrefix = "ticket:close:"
)

var ErrUnauthorized = errors.New("fulfillment: only the requester or staff may close this ticket")

type Config struct {
	CategoryID  string
	StaffRoleID string
	Branding    display.Branding
	Timeout     time.Duration
	Retry       retry.Policy
}

type Manager struct {
	platform chat.Platform
	tickets  domain.Repository
	cfg      Config

	tel     observability.Observability
	log     observability.Logger
	metrics observability.Metrics
	now     func() time.Time
}

func NewManager(platform chat.Platform, tickets domain.Repository, cfg Config, tel observability.Observability) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.Default
	}
	return &Manager{
		platform: platform,
		tickets:  tickets,
		cfg:      cfg,
		tel:      tel,
		log:      observability.LoggerOf(tel).With(observability.F("service", fulfillmentService)),
		metrics:  observability.MetricsOf(tel),
		now:      time.Now,
	}
}

// CloseButtonID encodes the ticket owner into the dismiss button.
func CloseButtonID(ownerID string) string { return closeButtonPrefix + ownerID }

// ParseCloseButtonID reports whether customID is a dismiss button and for whom.
func ParseCloseButtonID(customID string) (ownerID string, ok bool) {
	ownerID, ok = strings.CutPrefix(customID, closeButtonPrefix)
	return ownerID, ok && ownerID != ""
}

// Open creates the order's private channel and posts its summary. A second
// call for the same order returns the existing ticket. Transient platform
// failures are retried; a requester who is not a guild member aborts the
// open for good.
func (m *Manager) Open(ctx context.Context, o domorder.Order) (_ *domain.Ticket, err error) {
	ctx, op := observability.StartOp(ctx, m.tel, logctx.FromOr(ctx, m.log), useCaseOpen, spanPrefix+"OpenTicket",
		attribute.String("order.id", o.ID),
		attribute.String("order.requester_id", o.Requester.UserID),
	)
	defer func() { op.End(err) }()
	op.Add(observability.F("order_id", o.ID))

	if existing, gerr := m.tickets.Get(ctx, o.ID); gerr == nil {
		op.Status("ALREADY_OPEN")
		return existing, nil
	} else if !errors.Is(gerr, domain.ErrNotFound) {
		op.Fail("REPOSITORY_FAILED")
		return nil, fmt.Errorf("fulfillment: lookup ticket: %w", gerr)
	}

	var (
		member    chat.Member
		channelID string
		attempts  int
		// sendFailed is set once a summary send returned an error; the message
		// may still have been delivered, so the channel is read before sending again.
		sendFailed bool
	)
	err = retry.Do(ctx, m.cfg.Retry, func(ctx context.Context) error {
		attempts++
		if member.UserID == "" {
			ferr := m.call(ctx, "find_member", func(ctx context.Context) error {
				var err error
				member, err = m.platform.FindMember(ctx, o.Requester.UserID)
				return err
			})
			if errors.Is(ferr, chat.ErrMemberNotFound) {
				return retry.Permanent(ferr)
			}
			if ferr != nil {
				return ferr
			}
		}
		if channelID == "" {
			if cerr := m.call(ctx, "create_channel", func(ctx context.Context) error {
				var err error
				channelID, err = m.platform.CreatePrivateChannel(ctx, chat.ChannelSpec{
					Name:        SanitizeChannelName(member.DisplayName),
					ParentID:    m.cfg.CategoryID,
					MemberID:    member.UserID,
					StaffRoleID: m.cfg.StaffRoleID,
					Topic:       "Order " + o.ID,
				})
				return err
			}); cerr != nil {
				return cerr
			}
		}
		if sendFailed {
			var last string
			lerr := m.call(ctx, "last_message", func(ctx context.Context) error {
				var err error
				last, err = m.platform.LastMessageID(ctx, channelID)
				return err
			})
			switch {
			case errors.Is(lerr, chat.ErrChannelNotFound):
				channelID, sendFailed = "", false
				return lerr
			case lerr != nil:
				return lerr
			case last != "":
				op.Status("SUMMARY_ALREADY_DELIVERED")
				return nil
			}
		}
		serr := m.call(ctx, "send_summary", func(ctx context.Context) error {
			_, err := m.platform.Send(ctx, channelID, m.Summary(o, member))
			return err
		})
		switch {
		case errors.Is(serr, chat.ErrChannelNotFound):
			channelID, sendFailed = "", false
		case serr != nil:
			sendFailed = true
		}
		return serr
	}, func(err error, wait time.Duration) {
		op.Logger().Warn("ticket_open_retry",
			observability.F("error", err),
			observability.F("wait", wait.String()),
		)
	})
	op.Add(observability.F("attempts", attempts))
	if err != nil {
		if errors.Is(err, chat.ErrMemberNotFound) {
			op.Fail("MEMBER_NOT_FOUND")
		} else {
			op.Fail("PLATFORM_FAILED")
		}
		return nil, fmt.Errorf("fulfillment: open ticket for %s: %w", o.ID, err)
	}

	t := &domain.Ticket{
		OrderID:   o.ID,
		ChannelID: channelID,
		OwnerID:   member.UserID,
		OpenedAt:  m.now().UTC(),
	}
	if ierr := m.tickets.Insert(ctx, t); ierr != nil && !errors.Is(ierr, domain.ErrConflict) {
		// The channel exists; only the idempotency record is missing.
		op.Status("TICKET_RECORD_FAILED")
		op.Add(observability.F("ticket_record_error", ierr.Error()))
	}
	op.Add(observability.F("channel_id", channelID))
	return t, nil
}

// Close deletes a ticket channel when actorID may close it.
func (m *Manager) Close(ctx context.Context, channelID, actorID, ownerID string) error {
	if err := m.CanClose(ctx, channelID, actorID, ownerID); err != nil {
		return err
	}
	return m.Remove(ctx, channelID)
}

// CanClose reports whether actorID may close the ticket in channelID: the
// customer or staff. ownerID comes from the dismiss button; the stored ticket
// owner wins when the ticket is known.
func (m *Manager) CanClose(ctx context.Context, channelID, actorID, ownerID string) (err error) {
	ctx, op := observability.StartOp(ctx, m.tel, logctx.FromOr(ctx, m.log), useCaseAuthorize, spanPrefix+"AuthorizeTicketClose",
		attribute.String("ticket.channel_id", channelID),
		attribute.String("ticket.actor_id", actorID),
	)
	defer func() { op.End(err) }()

	ticket, terr := m.tickets.FindByChannel(ctx, channelID)
	switch {
	case terr == nil:
		ownerID = ticket.OwnerID
	case !errors.Is(terr, domain.ErrNotFound):
		op.Fail("REPOSITORY_FAILED")
		return fmt.Errorf("fulfillment: lookup ticket: %w", terr)
	}
	if actorID != "" && actorID == ownerID {
		return nil
	}

	staff := false
	if serr := m.call(ctx, "is_staff", func(ctx context.Context) error {
		var err error
		staff, err = m.platform.IsStaff(ctx, actorID)
		return err
	}); serr != nil {
		op.Fail("AUTHORIZATION_LOOKUP_FAILED")
		return fmt.Errorf("fulfillment: check staff: %w", serr)
	}
	if !staff {
		op.Fail("UNAUTHORIZED")
		return ErrUnauthorized
	}
	return nil
}

// Remove deletes the ticket channel and its record without any
// authorization check. A channel that is already gone is not an error.
func (m *Manager) Remove(ctx context.Context, channelID string) (err error) {
	ctx, op := observability.StartOp(ctx, m.tel, logctx.FromOr(ctx, m.log), useCaseClose, spanPrefix+"CloseTicket",
		attribute.String("ticket.channel_id", channelID),
	)
	defer func() { op.End(err) }()

	ticket, terr := m.tickets.FindByChannel(ctx, channelID)
	if terr != nil && !errors.Is(terr, domain.ErrNotFound) {
		op.Add(observability.F("ticket_lookup_error", terr.Error()))
	}

	if derr := m.call(ctx, "delete_channel", func(ctx context.Context) error {
		return m.platform.DeleteChannel(ctx, channelID)
	}); derr != nil && !errors.Is(derr, chat.ErrChannelNotFound) {
		op.Fail("PLATFORM_FAILED")
		return fmt.Errorf("fulfillment: delete channel: %w", derr)
	}

	if ticket != nil {
		if rerr := m.tickets.Delete(ctx, ticket.OrderID); rerr != nil && !errors.Is(rerr, domain.ErrNotFound) {
			op.Add(observability.F("ticket_delete_error", rerr.Error()))
		}
		op.Add(observability.F("order_id", ticket.OrderID))
	}
	return nil
}

// Summary is the first message of a ticket channel.
func (m *Manager) Summary(o domorder.Order, member chat.Member) chat.Message {
	greeting := o.Requester.DisplayName
	content := ""
	if member.UserID != "" {
		greeting = member.Mention()
		content = member.Mention()
	}
	return chat.Message{
		Content: content,
		Embeds:  []chat.Embed{display.RenderOrder(o, greeting, m.cfg.Branding)},
		Buttons: []chat.Button{{
			CustomID: CloseButtonID(o.Requester.UserID),
			Label:    "Close order",
			Style:    chat.ButtonDanger,
		}},
	}
}

// call bounds one platform request and records it.
func (m *Manager) call(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	start := time.Now()
	err := fn(callCtx)
	observability.External(m.metrics, platformPeer, endpoint, start, err)
	return err
}
