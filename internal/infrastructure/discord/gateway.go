package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/presentation/interaction"
	"github.com/bwmarrin/discordgo"
)

const (
	gatewayPeer = "discord"
	// Discord drops interactions not acknowledged within three seconds.
	interactionDeadline = 2500 * time.Millisecond
	followUpTimeout     = 10 * time.Second
)

// NewSession creates an unopened bot session.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	s.ShouldRetryOnRateLimit = true
	return s, nil
}

// InteractionHandler answers platform-neutral interactions.
type InteractionHandler interface {
	Handle(ctx context.Context, req interaction.Request) interaction.Response
}

type responder interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Gateway feeds gateway interactions to an InteractionHandler and sends its
// reply back.
type Gateway struct {
	session *discordgo.Session
	respond responder
	handler InteractionHandler
	log     observability.Logger
	metrics observability.Metrics
	remove  func()
}

func NewGateway(s *discordgo.Session, h InteractionHandler, tel observability.Observability) *Gateway {
	return &Gateway{
		session: s,
		respond: s,
		handler: h,
		log:     observability.LoggerOf(tel).With(observability.F("component", "discord_gateway")),
		metrics: observability.MetricsOf(tel),
	}
}

// Open registers the interaction handler and connects the websocket.
func (g *Gateway) Open() error {
	g.remove = g.session.AddHandler(func(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
		g.dispatch(context.Background(), ic.Interaction)
	})
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	g.log.Info("discord_gateway_open")
	return nil
}

func (g *Gateway) Close() error {
	if g.remove != nil {
		g.remove()
	}
	return g.session.Close()
}

func (g *Gateway) dispatch(ctx context.Context, i *discordgo.Interaction) {
	req, ok := requestFrom(i)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, interactionDeadline)
	defer cancel()

	resp := g.handler.Handle(ctx, req)

	start := time.Now()
	err := g.respond.InteractionRespond(i, responseFor(resp))
	observability.External(g.metrics, gatewayPeer, "interaction_respond", start, err)
	if err != nil {
		g.log.Warn("interaction_respond_failed",
			observability.F("custom_id", req.CustomID),
			observability.F("error", mapError(err)),
		)
	}

	if resp.After != nil {
		afterCtx, cancelAfter := context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
		defer cancelAfter()
		resp.After(afterCtx)
	}
}

func requestFrom(i *discordgo.Interaction) (interaction.Request, bool) {
	if i == nil {
		return interaction.Request{}, false
	}
	req := interaction.Request{ChannelID: i.ChannelID}
	switch {
	case i.Member != nil && i.Member.User != nil:
		req.UserID = i.Member.User.ID
	case i.User != nil:
		req.UserID = i.User.ID
	}

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data, ok := i.Data.(discordgo.MessageComponentInteractionData)
		if !ok {
			return interaction.Request{}, false
		}
		req.Kind = interaction.KindComponent
		req.CustomID = data.CustomID
		req.Values = data.Values
	case discordgo.InteractionModalSubmit:
		data, ok := i.Data.(discordgo.ModalSubmitInteractionData)
		if !ok {
			return interaction.Request{}, false
		}
		req.Kind = interaction.KindFormSubmit
		req.CustomID = data.CustomID
		req.Fields = formValues(data.Components)
	default:
		return interaction.Request{}, false
	}
	return req, true
}

func formValues(rows []discordgo.MessageComponent) map[string]string {
	values := make(map[string]string)
	for _, c := range rows {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if in, ok := inner.(*discordgo.TextInput); ok {
				values[in.CustomID] = in.Value
			}
		}
	}
	return values
}

func responseFor(resp interaction.Response) *discordgo.InteractionResponse {
	if resp.Form != nil {
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: toModal(*resp.Form),
		}
	}
	data := &discordgo.InteractionResponseData{Content: resp.Content}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}
