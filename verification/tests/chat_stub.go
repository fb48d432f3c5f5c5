package tests

import (
	"context"
	"fmt"
	"sync"

	"throttle_platform/verification/chat"
)

type stubMessage struct {
	ChannelId string
	MessageId string
	Msg       chat.Message
}

// ChatStub records every outbound chat call so tests can assert on posted
// messages and drive consent prompts.
type ChatStub struct {
	mu     sync.Mutex
	nextId int

	Posted  []stubMessage
	Edits   []stubMessage
	Directs map[string][]chat.Message
	Roles   map[string]map[string]bool

	FailDirects    bool
	FailPosts      bool
	UnknownMembers map[string]bool
}

func newChatStub() *ChatStub {
	return &ChatStub{
		Directs:        make(map[string][]chat.Message),
		Roles:          make(map[string]map[string]bool),
		UnknownMembers: make(map[string]bool),
	}
}

func (s *ChatStub) PostMessage(ctx context.Context, channelId string, msg chat.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailPosts {
		return "", chat.ErrMessageDeliveryFailed
	}

	s.nextId++
	messageId := fmt.Sprintf("msg-%d", s.nextId)
	s.Posted = append(s.Posted, stubMessage{ChannelId: channelId, MessageId: messageId, Msg: msg})
	return messageId, nil
}

func (s *ChatStub) EditMessage(ctx context.Context, channelId, messageId string, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Edits = append(s.Edits, stubMessage{ChannelId: channelId, MessageId: messageId, Msg: msg})
	return nil
}

func (s *ChatStub) SendDirect(ctx context.Context, userId string, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDirects || s.UnknownMembers[userId] {
		return chat.ErrUnknownMember
	}

	s.Directs[userId] = append(s.Directs[userId], msg)
	return nil
}

func (s *ChatStub) AddRole(ctx context.Context, guildId, userId, roleId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UnknownMembers[userId] {
		return chat.ErrUnknownMember
	}

	key := guildId + "/" + userId
	if s.Roles[key] == nil {
		s.Roles[key] = make(map[string]bool)
	}
	s.Roles[key][roleId] = true
	return nil
}

func (s *ChatStub) RemoveRole(ctx context.Context, guildId, userId, roleId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UnknownMembers[userId] {
		return chat.ErrUnknownMember
	}

	delete(s.Roles[guildId+"/"+userId], roleId)
	return nil
}

func (s *ChatStub) HasRole(guildId, userId, roleId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Roles[guildId+"/"+userId][roleId]
}

// MessagesIn returns a snapshot of the messages posted to a channel.
func (s *ChatStub) MessagesIn(channelId string) []stubMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []stubMessage
	for _, msg := range s.Posted {
		if msg.ChannelId == channelId {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func (s *ChatStub) DirectsTo(userId string) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]chat.Message{}, s.Directs[userId]...)
}
