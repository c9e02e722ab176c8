package orch

import (
	"context"
	"strings"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

type ChatRequest struct {
	Text    string           `json:"text"`
	ReplyTo domain.MessageID `json:"replyTo,omitempty"`
	// Target is set for direct messages.
	Target domain.SessionID `json:"targetConnectionId,omitempty"`
}

type ReactRequest struct {
	MessageID domain.MessageID `json:"messageId"`
	Reaction  string           `json:"reaction"`
	RoomID    domain.RoomID    `json:"roomId,omitempty"`
	Target    domain.SessionID `json:"targetConnectionId,omitempty"`
}

type HistoryRequest struct {
	RoomID domain.RoomID    `json:"roomId,omitempty"`
	Target domain.SessionID `json:"targetConnectionId,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Before domain.MessageID `json:"before,omitempty"`
}

// ReactionEvent is the payload of message-reaction.
type ReactionEvent struct {
	MessageID domain.MessageID  `json:"messageId"`
	RoomID    domain.RoomID     `json:"roomId,omitempty"`
	PeerA     domain.SessionID  `json:"peerA,omitempty"`
	PeerB     domain.SessionID  `json:"peerB,omitempty"`
	Reactions []domain.Reaction `json:"reactions"`
}

type RoomMessages struct {
	RoomID   domain.RoomID    `json:"roomId"`
	Messages []domain.Message `json:"messages"`
}

type DirectMessages struct {
	PeerID   domain.SessionID `json:"peerId"`
	Messages []domain.Message `json:"messages"`
}

func (o *Orchestrator) text(raw string) (string, error) {
	t := strings.TrimSpace(raw)
	if t == "" || len(t) > o.cfg.MaxTextLen {
		return "", domain.ErrBadPayload
	}
	return t, nil
}

func (o *Orchestrator) newMessage(sess *domain.Session, text string, replyTo domain.MessageID) *domain.Message {
	return &domain.Message{
		SenderID:        sess.ID,
		SenderName:      sess.DisplayName,
		Text:            text,
		Timestamp:       o.clock.Now(),
		IsAuthenticated: sess.Authenticated(),
		ReplyTo:         replyTo,
	}
}

// ChatMessage appends to the caller's room log and echoes to every member,
// sender included.
func (o *Orchestrator) ChatMessage(ctx context.Context, sid domain.SessionID, req ChatRequest) (domain.Message, error) {
	var out domain.Message
	err := o.do(ctx, func() error {
		sess, err := o.session(sid)
		if err != nil {
			return err
		}
		roomID, ok := o.Registry.RoomOf(sid)
		if !ok {
			return domain.ErrNotInRoom
		}
		text, err := o.text(req.Text)
		if err != nil {
			return err
		}
		m := o.newMessage(sess, text, req.ReplyTo)
		m.RoomID = roomID
		out = o.Messages.Append(domain.RoomConversation(roomID), m)
		o.Presence.ToRoom(roomID, core.NewEvent(core.EventChatMessage, out), "")
		return nil
	})
	return out, err
}

func (o *Orchestrator) DirectMessage(ctx context.Context, sid domain.SessionID, req ChatRequest) (domain.Message, error) {
	var out domain.Message
	err := o.do(ctx, func() error {
		sess, err := o.session(sid)
		if err != nil {
			return err
		}
		if req.Target == "" || req.Target == sid {
			return domain.ErrBadPayload
		}
		if _, ok := o.Registry.Get(req.Target); !ok {
			return domain.ErrConnectionNotFound
		}
		text, err := o.text(req.Text)
		if err != nil {
			return err
		}
		m := o.newMessage(sess, text, req.ReplyTo)
		m.ReceiverID = req.Target
		out = o.Messages.Append(domain.DirectConversation(sid, req.Target), m)
		o.Registry.Broadcast([]domain.SessionID{req.Target, sid}, core.NewEvent(core.EventDirectMessage, out), "")
		return nil
	})
	return out, err
}

// React sets the caller's reaction. A message that no longer exists is
// ignored without an error.
func (o *Orchestrator) React(ctx context.Context, sid domain.SessionID, req ReactRequest) error {
	return o.do(ctx, func() error {
		if _, err := o.session(sid); err != nil {
			return err
		}
		if req.MessageID == "" || strings.TrimSpace(req.Reaction) == "" {
			return domain.ErrBadPayload
		}
		var ref domain.ConversationRef
		var audience []domain.SessionID
		if req.Target != "" {
			ref = domain.DirectConversation(sid, req.Target)
			audience = []domain.SessionID{sid, req.Target}
		} else {
			roomID, err := o.memberRoom(sid, req.RoomID)
			if err != nil {
				return err
			}
			ref = domain.RoomConversation(roomID)
			audience = o.Presence.MemberIDs(roomID)
		}
		msg, ok := o.Messages.React(ref, req.MessageID, domain.Reaction{
			UserID:    string(sid),
			Reaction:  req.Reaction,
			Timestamp: o.clock.Now(),
		})
		if !ok {
			return nil
		}
		o.Registry.Broadcast(audience, core.NewEvent(core.EventReaction, ReactionEvent{
			MessageID: msg.ID,
			RoomID:    ref.RoomID,
			PeerA:     ref.PeerA,
			PeerB:     ref.PeerB,
			Reactions: msg.Reactions,
		}), "")
		return nil
	})
}

// memberRoom resolves the room a room-log request refers to. Only the
// caller's current room is readable.
func (o *Orchestrator) memberRoom(sid domain.SessionID, requested domain.RoomID) (domain.RoomID, error) {
	current, ok := o.Registry.RoomOf(sid)
	if !ok || (requested != "" && requested != current) {
		return "", domain.ErrNotInRoom
	}
	return current, nil
}

// RoomMessages returns a page of the caller's room log.
func (o *Orchestrator) RoomMessages(ctx context.Context, sid domain.SessionID, req HistoryRequest) ([]domain.Message, error) {
	var out []domain.Message
	err := o.do(ctx, func() error {
		if _, err := o.session(sid); err != nil {
			return err
		}
		roomID, err := o.memberRoom(sid, req.RoomID)
		if err != nil {
			return err
		}
		out = o.Messages.List(domain.RoomConversation(roomID), req.Limit, req.Before)
		_ = o.Registry.Send(sid, core.NewEvent(core.EventRoomMessages, RoomMessages{RoomID: roomID, Messages: out}))
		return nil
	})
	return out, err
}

// DirectMessages returns a page of the DM log with target and marks the
// messages addressed to the caller as read.
func (o *Orchestrator) DirectMessages(ctx context.Context, sid domain.SessionID, req HistoryRequest) ([]domain.Message, error) {
	var out []domain.Message
	err := o.do(ctx, func() error {
		if _, err := o.session(sid); err != nil {
			return err
		}
		if req.Target == "" {
			return domain.ErrBadPayload
		}
		ref := domain.DirectConversation(sid, req.Target)
		out = o.Messages.List(ref, req.Limit, req.Before)
		o.Messages.MarkRead(ref, sid)
		_ = o.Registry.Send(sid, core.NewEvent(core.EventDirectMessages, DirectMessages{PeerID: req.Target, Messages: out}))
		return nil
	})
	return out, err
}
