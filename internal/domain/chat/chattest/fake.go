// Package chattest provides an in-memory chat.Platform for tests.
package chattest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
)

// Posted is a message currently stored by the fake.
type Posted struct {
	ChannelID string
	Message   chat.Message
	Edits     int

	seq int
}

// Platform is a thread-safe fake of chat.Platform.
type Platform struct {
	mu       sync.Mutex
	seq      int
	messages map[string]*Posted
	channels map[string]chat.ChannelSpec
	members  map[string]chat.Member
	staff    map[string]bool
	failures map[string][]error
	late     map[string][]error
	calls    map[string]int
}

var _ chat.Platform = (*Platform)(nil)

func New() *Platform {
	return &Platform{
		messages: make(map[string]*Posted),
		channels: make(map[string]chat.ChannelSpec),
		members:  make(map[string]chat.Member),
		staff:    make(map[string]bool),
		failures: make(map[string][]error),
		late:     make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// AddMember registers a guild member; staff members pass IsStaff.
func (p *Platform) AddMember(m chat.Member, staff bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[m.UserID] = m
	p.staff[m.UserID] = staff
}

// SetStaff changes a member's staff status.
func (p *Platform) SetStaff(userID string, staff bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staff[userID] = staff
}

// FailNext queues errors returned by the next calls of method
// ("send", "edit", "delete", "last_message", "find_member", "create_channel",
// "delete_channel", "is_staff").
func (p *Platform) FailNext(method string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[method] = append(p.failures[method], errs...)
}

// SucceedThenFail queues errors returned by the next calls of method after
// the call took effect, like a request that lands but times out on the way back.
// Only "send" honours it.
func (p *Platform) SucceedThenFail(method string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.late[method] = append(p.late[method], errs...)
}

// Calls returns how many times method was invoked.
func (p *Platform) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// Message returns the stored message for id.
func (p *Platform) Message(id string) (Posted, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.messages[id]
	if !ok {
		return Posted{}, false
	}
	return *m, true
}

// MessagesIn returns the ids of messages stored in channelID.
func (p *Platform) MessagesIn(channelID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	for id, m := range p.messages {
		if m.ChannelID == channelID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Channel returns the spec a channel was created with.
func (p *Platform) Channel(id string) (chat.ChannelSpec, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	spec, ok := p.channels[id]
	return spec, ok
}

// Channels returns how many private channels currently exist.
func (p *Platform) Channels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.channels)
}

// DropMessage deletes a message behind the shop's back.
func (p *Platform) DropMessage(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.messages, id)
}

func (p *Platform) enter(method string) error {
	p.calls[method]++
	if q := p.failures[method]; len(q) > 0 {
		p.failures[method] = q[1:]
		return q[0]
	}
	return nil
}

func (p *Platform) nextID(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s-%d", prefix, p.seq)
}

func (p *Platform) Send(ctx context.Context, channelID string, msg chat.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("send"); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := p.nextID("msg")
	p.messages[id] = &Posted{ChannelID: channelID, Message: msg, seq: p.seq}
	if q := p.late["send"]; len(q) > 0 {
		p.late["send"] = q[1:]
		return "", q[0]
	}
	return id, nil
}

func (p *Platform) LastMessageID(ctx context.Context, channelID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("last_message"); err != nil {
		return "", err
	}
	last, newest := "", 0
	for id, m := range p.messages {
		if m.ChannelID == channelID && m.seq > newest {
			last, newest = id, m.seq
		}
	}
	return last, nil
}

func (p *Platform) Edit(ctx context.Context, channelID, messageID string, msg chat.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("edit"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m, ok := p.messages[messageID]
	if !ok || m.ChannelID != channelID {
		return chat.ErrMessageNotFound
	}
	m.Message = msg
	m.Edits++
	return nil
}

func (p *Platform) Delete(ctx context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("delete"); err != nil {
		return err
	}
	m, ok := p.messages[messageID]
	if !ok || m.ChannelID != channelID {
		return chat.ErrMessageNotFound
	}
	delete(p.messages, messageID)
	return nil
}

func (p *Platform) FindMember(ctx context.Context, userID string) (chat.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("find_member"); err != nil {
		return chat.Member{}, err
	}
	m, ok := p.members[userID]
	if !ok {
		return chat.Member{}, chat.ErrMemberNotFound
	}
	return m, nil
}

func (p *Platform) CreatePrivateChannel(ctx context.Context, spec chat.ChannelSpec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("create_channel"); err != nil {
		return "", err
	}
	id := p.nextID("chan")
	p.channels[id] = spec
	return id, nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("delete_channel"); err != nil {
		return err
	}
	if _, ok := p.channels[channelID]; !ok {
		return chat.ErrChannelNotFound
	}
	delete(p.channels, channelID)
	for id, m := range p.messages {
		if m.ChannelID == channelID {
			delete(p.messages, id)
		}
	}
	return nil
}

func (p *Platform) IsStaff(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("is_staff"); err != nil {
		return false, err
	}
	return p.staff[userID], nil
}
