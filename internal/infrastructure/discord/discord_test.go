package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/presentation/interaction"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

func restErr(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
		Message:  &discordgo.APIErrorMessage{Code: code},
	}
}

type fakeSession struct {
	sent     []*discordgo.MessageSend
	edits    []*discordgo.MessageEdit
	created  []discordgo.GuildChannelCreateData
	members  map[string]*discordgo.Member
	editErr  error
	history  []*discordgo.Message
	memberFn func(userID string) error
}

func (f *fakeSession) ChannelMessageSendComplex(_ string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, data)
	return &discordgo.Message{ID: "m1"}, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, m)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &discordgo.Message{ID: m.ID}, nil
}

func (f *fakeSession) ChannelMessageDelete(string, string, ...discordgo.RequestOption) error {
	return restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMessage)
}

func (f *fakeSession) ChannelMessages(_ string, limit int, _, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeSession) GuildMember(_ string, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	if f.memberFn != nil {
		if err := f.memberFn(userID); err != nil {
			return nil, err
		}
	}
	m, ok := f.members[userID]
	if !ok {
		return nil, restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMember)
	}
	return m, nil
}

func (f *fakeSession) GuildChannelCreateComplex(_ string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.created = append(f.created, data)
	return &discordgo.Channel{ID: "c1"}, nil
}

func (f *fakeSession) ChannelDelete(string, ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return nil, restErr(http.StatusNotFound, discordgo.ErrCodeUnknownChannel)
}

func newTestPlatform() (*Platform, *fakeSession) {
	fs := &fakeSession{members: map[string]*discordgo.Member{
		"7":  {User: &discordgo.User{ID: "7", Username: "staffer"}, Roles: []string{"staff-role"}},
		"42": {User: &discordgo.User{ID: "42", Username: "alice", GlobalName: "Alice"}, Nick: "Ali"},
		"43": {User: &discordgo.User{ID: "43", Username: "bob"}},
	}}
	return &Platform{s: fs, cfg: Config{GuildID: "guild", StaffRoleID: "staff-role"}}, fs
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unknown message", restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMessage), chat.ErrMessageNotFound},
		{"unknown channel", restErr(http.StatusNotFound, discordgo.ErrCodeUnknownChannel), chat.ErrChannelNotFound},
		{"unknown member", restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMember), chat.ErrMemberNotFound},
		{"unknown user", restErr(http.StatusNotFound, discordgo.ErrCodeUnknownUser), chat.ErrMemberNotFound},
		{"server error", restErr(http.StatusBadGateway, 0), chat.ErrTransient},
		{"rate limited", restErr(http.StatusTooManyRequests, 0), chat.ErrTransient},
		{"rate limit error", &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{TooManyRequests: &discordgo.TooManyRequests{}}}, chat.ErrTransient},
		{"deadline", context.DeadlineExceeded, chat.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, mapError(tc.err), tc.want)
		})
	}

	forbidden := restErr(http.StatusForbidden, 50013)
	require.Equal(t, forbidden, mapError(forbidden))
	require.NoError(t, mapError(nil))
}

func TestSendConvertsMessage(t *testing.T) {
	p, fs := newTestPlatform()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	id, err := p.Send(context.Background(), "chan", chat.Message{
		Content: "<@42>",
		Embeds: []chat.Embed{{
			Title:     "🛒 New order",
			Color:     chat.ColorRed,
			Fields:    []chat.Field{{Name: "Nitro", Value: "x1", Inline: true}},
			Footer:    "ZIKO SHOP",
			Timestamp: ts,
		}},
		Buttons: []chat.Button{{CustomID: "ticket:close:42", Label: "Close order", Style: chat.ButtonDanger}},
	})
	require.NoError(t, err)
	require.Equal(t, "m1", id)

	sent := fs.sent[0]
	require.Equal(t, "<@42>", sent.Content)
	require.Equal(t, "ZIKO SHOP", sent.Embeds[0].Footer.Text)
	require.Equal(t, "2026-01-02T03:04:05Z", sent.Embeds[0].Timestamp)
	require.True(t, sent.Embeds[0].Fields[0].Inline)
	row := sent.Components[0].(discordgo.ActionsRow)
	btn := row.Components[0].(discordgo.Button)
	require.Equal(t, discordgo.DangerButton, btn.Style)
	require.Equal(t, "ticket:close:42", btn.CustomID)
}

func TestEditMapsMissingMessage(t *testing.T) {
	p, fs := newTestPlatform()
	fs.editErr = restErr(http.StatusNotFound, discordgo.ErrCodeUnknownMessage)

	err := p.Edit(context.Background(), "chan", "gone", chat.Message{
		Select: &chat.SelectMenu{CustomID: "admin:panel", Options: []chat.SelectOption{{Label: "a", Value: "b"}}},
	})
	require.ErrorIs(t, err, chat.ErrMessageNotFound)

	edit := fs.edits[0]
	require.Equal(t, "gone", edit.ID)
	require.Equal(t, "chan", edit.Channel)
	require.NotNil(t, edit.Embeds)
	require.Empty(t, *edit.Embeds)
	menu := (*edit.Components)[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	require.Equal(t, "admin:panel", menu.CustomID)
	require.Equal(t, discordgo.StringSelectMenu, menu.MenuType)
}

func TestDeleteErrors(t *testing.T) {
	p, _ := newTestPlatform()
	require.ErrorIs(t, p.Delete(context.Background(), "chan", "m"), chat.ErrMessageNotFound)
	require.ErrorIs(t, p.DeleteChannel(context.Background(), "chan"), chat.ErrChannelNotFound)
}

func TestLastMessageID(t *testing.T) {
	p, fs := newTestPlatform()

	id, err := p.LastMessageID(context.Background(), "c1")
	require.NoError(t, err)
	require.Empty(t, id)

	fs.history = []*discordgo.Message{{ID: "m9"}, {ID: "m8"}}
	id, err = p.LastMessageID(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, "m9", id)
}

func TestFindMember(t *testing.T) {
	p, _ := newTestPlatform()

	m, err := p.FindMember(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, chat.Member{UserID: "42", DisplayName: "Ali"}, m)

	m, err = p.FindMember(context.Background(), "43")
	require.NoError(t, err)
	require.Equal(t, "bob", m.DisplayName)

	_, err = p.FindMember(context.Background(), "404")
	require.ErrorIs(t, err, chat.ErrMemberNotFound)
}

func TestIsStaff(t *testing.T) {
	p, fs := newTestPlatform()
	ctx := context.Background()

	ok, err := p.IsStaff(ctx, "7")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.IsStaff(ctx, "42")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = p.IsStaff(ctx, "404")
	require.NoError(t, err)
	require.False(t, ok)

	fs.memberFn = func(string) error { return restErr(http.StatusServiceUnavailable, 0) }
	_, err = p.IsStaff(ctx, "7")
	require.ErrorIs(t, err, chat.ErrTransient)
}

func TestCreatePrivateChannel(t *testing.T) {
	p, fs := newTestPlatform()

	id, err := p.CreatePrivateChannel(context.Background(), chat.ChannelSpec{
		Name: "ticket-alice", ParentID: "cat", MemberID: "42", StaffRoleID: "staff-role",
	})
	require.NoError(t, err)
	require.Equal(t, "c1", id)

	data := fs.created[0]
	require.Equal(t, discordgo.ChannelTypeGuildText, data.Type)
	require.Equal(t, "cat", data.ParentID)
	require.Len(t, data.PermissionOverwrites, 3)
	everyone := data.PermissionOverwrites[0]
	require.Equal(t, "guild", everyone.ID)
	require.Equal(t, int64(discordgo.PermissionViewChannel), everyone.Deny)
	member := data.PermissionOverwrites[1]
	require.Equal(t, discordgo.PermissionOverwriteTypeMember, member.Type)
	require.NotZero(t, member.Allow&discordgo.PermissionSendMessages)
}

func decodeInteraction(t *testing.T, raw string) *discordgo.Interaction {
	t.Helper()
	var i discordgo.Interaction
	require.NoError(t, json.Unmarshal([]byte(raw), &i))
	return &i
}

func TestRequestFrom(t *testing.T) {
	selectRaw := `{"id":"1","type":3,"channel_id":"admin","member":{"user":{"id":"7"}},
		"data":{"custom_id":"admin:panel","component_type":3,"values":["admin:increase:nitro1m"]}}`
	req, ok := requestFrom(decodeInteraction(t, selectRaw))
	require.True(t, ok)
	require.Equal(t, interaction.Request{
		Kind: interaction.KindComponent, CustomID: "admin:panel",
		Values: []string{"admin:increase:nitro1m"}, UserID: "7", ChannelID: "admin",
	}, req)

	modalRaw := `{"id":"2","type":5,"channel_id":"admin","user":{"id":"7"},
		"data":{"custom_id":"admin:set_price:nitro1m","components":[
			{"type":1,"components":[{"type":4,"custom_id":"value","value":"2,5"}]}]}}`
	req, ok = requestFrom(decodeInteraction(t, modalRaw))
	require.True(t, ok)
	require.Equal(t, interaction.KindFormSubmit, req.Kind)
	require.Equal(t, map[string]string{"value": "2,5"}, req.Fields)
	require.Equal(t, "7", req.UserID)

	_, ok = requestFrom(&discordgo.Interaction{Type: discordgo.InteractionPing})
	require.False(t, ok)
	_, ok = requestFrom(nil)
	require.False(t, ok)
}

type fakeResponder struct {
	got *discordgo.InteractionResponse
	err error
}

func (f *fakeResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.got = resp
	return f.err
}

type handlerFunc func(context.Context, interaction.Request) interaction.Response

func (h handlerFunc) Handle(ctx context.Context, req interaction.Request) interaction.Response {
	return h(ctx, req)
}

func TestDispatch(t *testing.T) {
	r := &fakeResponder{}
	var seen interaction.Request
	g := &Gateway{respond: r, handler: handlerFunc(func(ctx context.Context, req interaction.Request) interaction.Response {
		_, hasDeadline := ctx.Deadline()
		require.True(t, hasDeadline)
		seen = req
		return interaction.Response{Form: &chat.Form{CustomID: "admin:increase:nitro1m", Title: "Add stock", Fields: []chat.FormField{{CustomID: "value", Label: "Quantity"}}}}
	}), log: observability.NopLogger(), metrics: observability.NopMetrics()}

	g.dispatch(context.Background(), decodeInteraction(t, `{"id":"1","type":3,"member":{"user":{"id":"7"}},
		"data":{"custom_id":"admin:panel","component_type":3,"values":["admin:increase:nitro1m"]}}`))

	require.Equal(t, "7", seen.UserID)
	require.Equal(t, discordgo.InteractionResponseModal, r.got.Type)
	require.Equal(t, "admin:increase:nitro1m", r.got.Data.CustomID)
	input := r.got.Data.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.TextInput)
	require.Equal(t, "value", input.CustomID)
	require.Equal(t, discordgo.TextInputShort, input.Style)
}

type orderedResponder struct {
	steps *[]string
}

func (r orderedResponder) InteractionRespond(*discordgo.Interaction, *discordgo.InteractionResponse, ...discordgo.RequestOption) error {
	*r.steps = append(*r.steps, "respond")
	return nil
}

func TestDispatchRunsFollowUpAfterReplying(t *testing.T) {
	var steps []string
	g := &Gateway{respond: orderedResponder{steps: &steps}, handler: handlerFunc(func(context.Context, interaction.Request) interaction.Response {
		return interaction.Response{Content: "closing", Ephemeral: true, After: func(ctx context.Context) {
			require.NoError(t, ctx.Err())
			steps = append(steps, "delete_channel")
		}}
	}), log: observability.NopLogger(), metrics: observability.NopMetrics()}

	g.dispatch(context.Background(), &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: "ticket-chan",
		Data:      discordgo.MessageComponentInteractionData{CustomID: "ticket:close:42"},
		User:      &discordgo.User{ID: "42"},
	})

	require.Equal(t, []string{"respond", "delete_channel"}, steps)
}

func TestResponseFor(t *testing.T) {
	resp := responseFor(interaction.Response{Content: "⛔ staff only", Ephemeral: true})
	require.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	require.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)

	resp = responseFor(interaction.Response{Content: "public"})
	require.Zero(t, resp.Data.Flags)
}

func TestRespondFailureIsLogged(t *testing.T) {
	r := &fakeResponder{err: errors.New("boom")}
	g := &Gateway{respond: r, handler: handlerFunc(func(context.Context, interaction.Request) interaction.Response {
		return interaction.Response{Content: "ok"}
	}), log: observability.NopLogger(), metrics: observability.NopMetrics()}

	require.NotPanics(t, func() {
		g.dispatch(context.Background(), &discordgo.Interaction{
			Type: discordgo.InteractionMessageComponent,
			Data: discordgo.MessageComponentInteractionData{CustomID: "ticket:close:42"},
			User: &discordgo.User{ID: "42"},
		})
	})
	require.NotNil(t, r.got)
}
