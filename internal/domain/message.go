package domain

import "time"

type MessageID string

type Reaction struct {
	UserID    string    `json:"userId"`
	Reaction  string    `json:"reaction"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is a room or direct message. Room messages carry RoomID,
// direct messages carry ReceiverID.
type Message struct {
	ID              MessageID  `json:"id"`
	SenderID        SessionID  `json:"senderId"`
	SenderName      string     `json:"senderName"`
	RoomID          RoomID     `json:"roomId,omitempty"`
	ReceiverID      SessionID  `json:"receiverId,omitempty"`
	Text            string     `json:"text"`
	Timestamp       time.Time  `json:"timestamp"`
	IsAuthenticated bool       `json:"isAuthenticated"`
	ReplyTo         MessageID  `json:"replyTo,omitempty"`
	Reactions       []Reaction `json:"reactions"`
	Read            bool       `json:"read,omitempty"`
}

func (m *Message) IsDirect() bool { return m.ReceiverID != "" }

// SetReaction stores r, replacing any earlier reaction by the same user.
func (m *Message) SetReaction(r Reaction) {
	for i := range m.Reactions {
		if m.Reactions[i].UserID == r.UserID {
			m.Reactions[i] = r
			return
		}
	}
	m.Reactions = append(m.Reactions, r)
}

// Clone returns a copy that shares no slices with m.
func (m *Message) Clone() Message {
	c := *m
	c.Reactions = append([]Reaction(nil), m.Reactions...)
	if c.Reactions == nil {
		c.Reactions = []Reaction{}
	}
	return c
}

// ConversationRef addresses either a room log or a direct-message log.
type ConversationRef struct {
	RoomID RoomID
	PeerA  SessionID
	PeerB  SessionID
}

func RoomConversation(id RoomID) ConversationRef { return ConversationRef{RoomID: id} }

// DirectConversation keys a DM log by the unordered pair of participants.
func DirectConversation(a, b SessionID) ConversationRef {
	if b < a {
		a, b = b, a
	}
	return ConversationRef{PeerA: a, PeerB: b}
}

func (c ConversationRef) IsDirect() bool { return c.RoomID == "" }

func (c ConversationRef) Key() string {
	if c.IsDirect() {
		return "dm:" + string(c.PeerA) + ":" + string(c.PeerB)
	}
	return "room:" + string(c.RoomID)
}
