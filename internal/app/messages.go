package app

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/domain"
)

type MessageConfig struct {
	MaxPerConversation int
	GuestRetention     time.Duration
	DefaultPage        int
	MaxPage            int
}

type conversation struct {
	ref  domain.ConversationRef
	msgs []*domain.Message
}

// MessageStore keeps capped room and direct message logs in memory.
type MessageStore struct {
	cfg   MessageConfig
	convs map[string]*conversation
}

func NewMessageStore(cfg MessageConfig) *MessageStore {
	if cfg.MaxPerConversation <= 0 {
		cfg.MaxPerConversation = 500
	}
	if cfg.GuestRetention <= 0 {
		cfg.GuestRetention = 24 * time.Hour
	}
	if cfg.DefaultPage <= 0 {
		cfg.DefaultPage = 50
	}
	if cfg.MaxPage < cfg.DefaultPage {
		cfg.MaxPage = cfg.DefaultPage
	}
	return &MessageStore{cfg: cfg, convs: make(map[string]*conversation)}
}

func (s *MessageStore) conv(ref domain.ConversationRef, create bool) *conversation {
	key := ref.Key()
	c, ok := s.convs[key]
	if !ok && create {
		c = &conversation{ref: ref}
		s.convs[key] = c
	}
	return c
}

// Append stores m and enforces the per-conversation cap: oldest guest
// messages go first, then oldest overall.
func (s *MessageStore) Append(ref domain.ConversationRef, m *domain.Message) domain.Message {
	if m.ID == "" {
		m.ID = domain.MessageID(uuid.NewString())
	}
	if m.Reactions == nil {
		m.Reactions = []domain.Reaction{}
	}
	c := s.conv(ref, true)
	c.msgs = append(c.msgs, m)
	for len(c.msgs) > s.cfg.MaxPerConversation {
		c.msgs = evictOne(c.msgs)
	}
	return m.Clone()
}

func evictOne(msgs []*domain.Message) []*domain.Message {
	idx := 0
	for i, m := range msgs {
		if !m.IsAuthenticated {
			idx = i
			break
		}
	}
	return append(msgs[:idx], msgs[idx+1:]...)
}

// List returns up to limit messages oldest first. With before set, only
// messages strictly preceding it are considered; an unknown cursor yields
// an empty page.
func (s *MessageStore) List(ref domain.ConversationRef, limit int, before domain.MessageID) []domain.Message {
	if limit <= 0 {
		limit = s.cfg.DefaultPage
	}
	if limit > s.cfg.MaxPage {
		limit = s.cfg.MaxPage
	}
	out := []domain.Message{}
	c := s.conv(ref, false)
	if c == nil {
		return out
	}
	window := c.msgs
	if before != "" {
		idx := indexOf(c.msgs, before)
		if idx < 0 {
			return out
		}
		window = c.msgs[:idx]
	}
	if len(window) > limit {
		window = window[len(window)-limit:]
	}
	for _, m := range window {
		out = append(out, m.Clone())
	}
	return out
}

func indexOf(msgs []*domain.Message, id domain.MessageID) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// React sets r on the message. A missing message is not an error.
func (s *MessageStore) React(ref domain.ConversationRef, id domain.MessageID, r domain.Reaction) (domain.Message, bool) {
	c := s.conv(ref, false)
	if c == nil {
		return domain.Message{}, false
	}
	idx := indexOf(c.msgs, id)
	if idx < 0 {
		return domain.Message{}, false
	}
	c.msgs[idx].SetReaction(r)
	return c.msgs[idx].Clone(), true
}

// MarkRead flags every direct message addressed to reader as read.
func (s *MessageStore) MarkRead(ref domain.ConversationRef, reader domain.SessionID) int {
	c := s.conv(ref, false)
	if c == nil || !ref.IsDirect() {
		return 0
	}
	n := 0
	for _, m := range c.msgs {
		if m.ReceiverID == reader && !m.Read {
			m.Read = true
			n++
		}
	}
	return n
}

// SweepGuest drops guest messages older than the retention window from
// every log. Authenticated messages are never touched.
func (s *MessageStore) SweepGuest(now time.Time) int {
	cutoff := now.Add(-s.cfg.GuestRetention)
	removed := 0
	for key, c := range s.convs {
		kept := c.msgs[:0]
		for _, m := range c.msgs {
			if !m.IsAuthenticated && m.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		c.msgs = kept
		if len(c.msgs) == 0 {
			delete(s.convs, key)
		}
	}
	if removed > 0 {
		log.Info().Str("module", "app.messages").Int("removed", removed).Msg("swept guest messages")
	}
	return removed
}

// Drop forgets a conversation, used when its room is deleted.
func (s *MessageStore) Drop(ref domain.ConversationRef) {
	delete(s.convs, ref.Key())
}

func (s *MessageStore) Len(ref domain.ConversationRef) int {
	if c := s.conv(ref, false); c != nil {
		return len(c.msgs)
	}
	return 0
}

// ConversationLog is the persisted form of one conversation.
type ConversationLog struct {
	RoomID   domain.RoomID    `json:"roomId,omitempty"`
	PeerA    domain.SessionID `json:"peerA,omitempty"`
	PeerB    domain.SessionID `json:"peerB,omitempty"`
	Messages []domain.Message `json:"messages"`
}

func (s *MessageStore) Snapshot() []ConversationLog {
	out := make([]ConversationLog, 0, len(s.convs))
	for _, c := range s.convs {
		l := ConversationLog{RoomID: c.ref.RoomID, PeerA: c.ref.PeerA, PeerB: c.ref.PeerB}
		for _, m := range c.msgs {
			l.Messages = append(l.Messages, m.Clone())
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		return conversationRef(out[i]).Key() < conversationRef(out[j]).Key()
	})
	return out
}

func conversationRef(l ConversationLog) domain.ConversationRef {
	if l.RoomID != "" {
		return domain.RoomConversation(l.RoomID)
	}
	return domain.DirectConversation(l.PeerA, l.PeerB)
}

func (s *MessageStore) Restore(logs []ConversationLog) {
	for _, l := range logs {
		ref := conversationRef(l)
		for i := range l.Messages {
			m := l.Messages[i]
			s.Append(ref, &m)
		}
	}
}
