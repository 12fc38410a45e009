// Package discord implements the chat platform port over the Discord API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	"github.com/bwmarrin/discordgo"
)

const (
	memberChannelPerms = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory
	staffChannelPerms  = memberChannelPerms | discordgo.PermissionManageMessages
)

// session is the slice of *discordgo.Session the adapter calls.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

var _ session = (*discordgo.Session)(nil)

type Config struct {
	GuildID     string
	StaffRoleID string
}

// Platform is chat.Platform backed by Discord's REST API.
type Platform struct {
	s   session
	cfg Config
}

var _ chat.Platform = (*Platform)(nil)

func NewPlatform(s *discordgo.Session, cfg Config) *Platform {
	return &Platform{s: s, cfg: cfg}
}

func (p *Platform) Send(ctx context.Context, channelID string, msg chat.Message) (string, error) {
	m, err := p.s.ChannelMessageSendComplex(channelID, toSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: send to %s: %w", channelID, mapError(err))
	}
	return m.ID, nil
}

func (p *Platform) Edit(ctx context.Context, channelID, messageID string, msg chat.Message) error {
	if _, err := p.s.ChannelMessageEditComplex(toEdit(channelID, messageID, msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: edit %s: %w", messageID, mapError(err))
	}
	return nil
}

func (p *Platform) Delete(ctx context.Context, channelID, messageID string) error {
	if err := p.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: delete %s: %w", messageID, mapError(err))
	}
	return nil
}

func (p *Platform) LastMessageID(ctx context.Context, channelID string) (string, error) {
	ms, err := p.s.ChannelMessages(channelID, 1, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: history of %s: %w", channelID, mapError(err))
	}
	if len(ms) == 0 {
		return "", nil
	}
	return ms[0].ID, nil
}

func (p *Platform) FindMember(ctx context.Context, userID string) (chat.Member, error) {
	m, err := p.member(ctx, userID)
	if err != nil {
		return chat.Member{}, err
	}
	name := m.DisplayName()
	if name == "" && m.User != nil {
		name = m.User.Username
	}
	return chat.Member{UserID: userID, DisplayName: name}, nil
}

// CreatePrivateChannel creates a text channel hidden from @everyone and
// visible to the member and the staff role.
func (p *Platform) CreatePrivateChannel(ctx context.Context, spec chat.ChannelSpec) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		// The @everyone role shares the guild's id.
		{ID: p.cfg.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: spec.MemberID, Type: discordgo.PermissionOverwriteTypeMember, Allow: memberChannelPerms},
	}
	if staff := spec.StaffRoleID; staff != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: staff, Type: discordgo.PermissionOverwriteTypeRole, Allow: staffChannelPerms})
	}
	ch, err := p.s.GuildChannelCreateComplex(p.cfg.GuildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Topic,
		ParentID:             spec.ParentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: create channel %s: %w", spec.Name, mapError(err))
	}
	return ch.ID, nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := p.s.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: delete channel %s: %w", channelID, mapError(err))
	}
	return nil
}

// IsStaff fetches the member from the API, never from the gateway cache, and
// checks for the staff role.
func (p *Platform) IsStaff(ctx context.Context, userID string) (bool, error) {
	if p.cfg.StaffRoleID == "" {
		return false, nil
	}
	m, err := p.member(ctx, userID)
	if err != nil {
		if errors.Is(err, chat.ErrMemberNotFound) {
			return false, nil
		}
		return false, err
	}
	return slices.Contains(m.Roles, p.cfg.StaffRoleID), nil
}

func (p *Platform) member(ctx context.Context, userID string) (*discordgo.Member, error) {
	m, err := p.s.GuildMember(p.cfg.GuildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord: member %s: %w", userID, mapError(err))
	}
	return m, nil
}
