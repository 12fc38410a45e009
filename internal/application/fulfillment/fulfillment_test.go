package fulfillment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat/chattest"
	domorder "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/order"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/memory"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/pkg/retry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fastRetry = retry.Policy{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond}

func newManager(t *testing.T) (*Manager, *chattest.Platform, *memory.TicketRepository) {
	t.Helper()
	p := chattest.New()
	p.AddMember(chat.Member{UserID: "42", DisplayName: "Élodie ★ Shop"}, false)
	p.AddMember(chat.Member{UserID: "7", DisplayName: "staffer"}, true)
	p.AddMember(chat.Member{UserID: "99", DisplayName: "stranger"}, false)
	repo := memory.NewTicketRepository()
	m := NewManager(p, repo, Config{CategoryID: "cat", StaffRoleID: "staff", Retry: fastRetry}, nil)
	return m, p, repo
}

func sampleOrder(t *testing.T) domorder.Order {
	t.Helper()
	o, err := domorder.New("o-1", domorder.Requester{UserID: "42", DisplayName: "Élodie ★ Shop"}, []domorder.Line{
		{ProductID: "nitro1m", Name: "Nitro 1 mois", Quantity: 2, UnitPrice: decimal.RequireFromString("1.5")},
	}, time.Now())
	require.NoError(t, err)
	return *o
}

func TestSanitizeChannelName(t *testing.T) {
	cases := map[string]string{
		"alice":            "ticket-alice",
		"Élodie ★ Shop":    "ticket-elodie-shop",
		"  --Bob__42!!  ":  "ticket-bob__42",
		"★★★":              "ticket-order",
		"":                 "ticket-order",
		"UPPER case  name": "ticket-upper-case-name",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeChannelName(in), in)
	}

	long := SanitizeChannelName("a" + strings.Repeat("b", 300))
	require.Len(t, long, 100)
}

func TestCloseButtonID(t *testing.T) {
	owner, ok := ParseCloseButtonID(CloseButtonID("42"))
	require.True(t, ok)
	require.Equal(t, "42", owner)

	_, ok = ParseCloseButtonID("ticket:close:")
	require.False(t, ok)
	_, ok = ParseCloseButtonID("admin:increase:nitro1m")
	require.False(t, ok)
}

func TestOpen_CreatesChannelAndSummary(t *testing.T) {
	ctx := context.Background()
	m, p, repo := newManager(t)

	ticket, err := m.Open(ctx, sampleOrder(t))
	require.NoError(t, err)

	spec, ok := p.Channel(ticket.ChannelID)
	require.True(t, ok)
	require.Equal(t, "ticket-elodie-shop", spec.Name)
	require.Equal(t, "cat", spec.ParentID)
	require.Equal(t, "42", spec.MemberID)
	require.Equal(t, "staff", spec.StaffRoleID)

	ids := p.MessagesIn(ticket.ChannelID)
	require.Len(t, ids, 1)
	posted, _ := p.Message(ids[0])
	require.Equal(t, "<@42>", posted.Message.Content)
	require.Equal(t, "ticket:close:42", posted.Message.Buttons[0].CustomID)
	require.Equal(t, "**3€**", posted.Message.Embeds[0].Fields[1].Value)

	stored, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)
	require.Equal(t, ticket.ChannelID, stored.ChannelID)
}

func TestOpen_IsIdempotentPerOrder(t *testing.T) {
	ctx := context.Background()
	m, p, _ := newManager(t)

	first, err := m.Open(ctx, sampleOrder(t))
	require.NoError(t, err)
	second, err := m.Open(ctx, sampleOrder(t))
	require.NoError(t, err)

	require.Equal(t, first.ChannelID, second.ChannelID)
	require.Equal(t, 1, p.Calls("create_channel"))
	require.Equal(t, 1, p.Channels())
}

func TestOpen_RetriesTransientFailuresWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	m, p, _ := newManager(t)
	p.FailNext("send", chat.ErrTransient)

	ticket, err := m.Open(ctx, sampleOrder(t))
	require.NoError(t, err)
	require.Equal(t, 1, p.Calls("create_channel"))
	require.Equal(t, 2, p.Calls("send"))
	require.Len(t, p.MessagesIn(ticket.ChannelID), 1)
}

func TestOpen_SummaryDeliveredDespiteTimeoutIsNotResent(t *testing.T) {
	ctx := context.Background()
	m, p, repo := newManager(t)
	p.SucceedThenFail("send", context.DeadlineExceeded)

	ticket, err := m.Open(ctx, sampleOrder(t))
	require.NoError(t, err)
	require.Equal(t, 1, p.Calls("send"))
	require.Equal(t, 1, p.Calls("last_message"))
	require.Len(t, p.MessagesIn(ticket.ChannelID), 1)

	stored, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)
	require.Equal(t, ticket.ChannelID, stored.ChannelID)
}

func TestOpen_HistoryLookupFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	m, p, _ := newManager(t)
	p.FailNext("send", chat.ErrTransient)
	p.FailNext("last_message", chat.ErrTransient)

	ticket, err := m.Open(ctx, sampleOrder(t))
	require.NoError(t, err)
	require.Equal(t, 2, p.Calls("send"))
	require.Equal(t, 2, p.Calls("last_message"))
	require.Len(t, p.MessagesIn(ticket.ChannelID), 1)
}

func TestOpen_UnknownMemberAbortsWithoutRetry(t *testing.T) {
	ctx := context.Background()
	m, p, repo := newManager(t)
	o := sampleOrder(t)
	o.Requester.UserID = "404"

	_, err := m.Open(ctx, o)
	require.ErrorIs(t, err, chat.ErrMemberNotFound)
	require.Equal(t, 1, p.Calls("find_member"))
	require.Equal(t, 0, p.Channels())
	_, err = repo.Get(ctx, o.ID)
	require.Error(t, err)
}

func TestOpen_GivesUpAfterAttempts(t *testing.T) {
	ctx := context.Background()
	m, p, _ := newManager(t)
	p.FailNext("create_channel", chat.ErrTransient, chat.ErrTransient, chat.ErrTransient)

	_, err := m.Open(ctx, sampleOrder(t))
	require.ErrorIs(t, err, chat.ErrTransient)
	require.Equal(t, 3, p.Calls("create_channel"))
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	t.Run("owner", func(t *testing.T) {
		m, p, repo := newManager(t)
		ticket, err := m.Open(ctx, sampleOrder(t))
		require.NoError(t, err)

		require.NoError(t, m.Close(ctx, ticket.ChannelID, "42", "42"))
		require.Equal(t, 0, p.Channels())
		_, err = repo.Get(ctx, "o-1")
		require.Error(t, err)
	})

	t.Run("staff", func(t *testing.T) {
		m, p, _ := newManager(t)
		ticket, err := m.Open(ctx, sampleOrder(t))
		require.NoError(t, err)

		require.NoError(t, m.Close(ctx, ticket.ChannelID, "7", "42"))
		require.Equal(t, 0, p.Channels())
	})

	t.Run("stranger", func(t *testing.T) {
		m, p, _ := newManager(t)
		ticket, err := m.Open(ctx, sampleOrder(t))
		require.NoError(t, err)

		require.ErrorIs(t, m.Close(ctx, ticket.ChannelID, "99", "99"), ErrUnauthorized)
		require.Equal(t, 1, p.Channels())
	})

	t.Run("unknown ticket uses button owner", func(t *testing.T) {
		m, p, _ := newManager(t)
		id, err := p.CreatePrivateChannel(ctx, chat.ChannelSpec{Name: "ticket-x"})
		require.NoError(t, err)

		require.ErrorIs(t, m.Close(ctx, id, "99", "42"), ErrUnauthorized)
		require.NoError(t, m.Close(ctx, id, "42", "42"))
		require.Equal(t, 0, p.Channels())
	})
}

func TestCanCloseLeavesChannelUntilRemoved(t *testing.T) {
	ctx := context.Background()
	m, p, repo := newManager(t)
	ticket, err := m.Open(ctx, sampleOrder(t))
	require.NoError(t, err)

	require.NoError(t, m.CanClose(ctx, ticket.ChannelID, "42", "42"))
	require.ErrorIs(t, m.CanClose(ctx, ticket.ChannelID, "99", "42"), ErrUnauthorized)
	require.Equal(t, 1, p.Channels())
	require.Equal(t, 0, p.Calls("delete_channel"))

	require.NoError(t, m.Remove(ctx, ticket.ChannelID))
	require.Equal(t, 0, p.Channels())
	_, err = repo.Get(ctx, "o-1")
	require.Error(t, err)

	require.NoError(t, m.Remove(ctx, ticket.ChannelID))
}
