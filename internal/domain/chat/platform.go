package chat

import (
	"context"
	"errors"
)

var (
	ErrMessageNotFound = errors.New("chat: message not found")
	ErrChannelNotFound = errors.New("chat: channel not found")
	ErrMemberNotFound  = errors.New("chat: member not found")
	// ErrTransient marks failures worth retrying (network, rate limits, 5xx).
	ErrTransient = errors.New("chat: transient platform failure")
)

// Messenger posts and edits messages.
type Messenger interface {
	Send(ctx context.Context, channelID string, msg Message) (messageID string, err error)
	Edit(ctx context.Context, channelID, messageID string, msg Message) error
	Delete(ctx context.Context, channelID, messageID string) error
	// LastMessageID returns the newest message in channelID, or "" when the
	// channel is empty.
	LastMessageID(ctx context.Context, channelID string) (string, error)
}

// Member is a resolved guild member.
type Member struct {
	UserID      string
	DisplayName string
}

// Mention returns the platform mention markup for the member.
func (m Member) Mention() string { return "<@" + m.UserID + ">" }

// ChannelSpec describes a private channel visible only to one member and staff.
type ChannelSpec struct {
	Name        string
	ParentID    string
	MemberID    string
	StaffRoleID string
	Topic       string
}

// Guild manages channels and memberships of the shop's community.
type Guild interface {
	FindMember(ctx context.Context, userID string) (Member, error)
	CreatePrivateChannel(ctx context.Context, spec ChannelSpec) (channelID string, err error)
	DeleteChannel(ctx context.Context, channelID string) error
	// IsStaff performs a fresh lookup of the member's roles and permissions.
	IsStaff(ctx context.Context, userID string) (bool, error)
}

// Platform is everything the shop needs from the chat service.
type Platform interface {
	Messenger
	Guild
}
