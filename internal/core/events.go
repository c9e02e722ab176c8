package core

import "encoding/json"

// Outbound event types.
const (
	EventWelcome        = "welcome"
	EventError          = "error"
	EventPong           = "pong"
	EventWhoAmI         = "whoami"
	EventRoomList       = "room-list"
	EventRoomCreated    = "room-created"
	EventRoomJoined     = "room-joined"
	EventRoomLeft       = "room-left"
	EventRoomUpdated    = "room-updated"
	EventRoomLocked     = "room-locked"
	EventRoomUnlocked   = "room-unlocked"
	EventRoomExpired    = "room-expired"
	EventRoomDeleted    = "room-deleted"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventMemberUpdated  = "member-updated"
	EventOffer          = "webrtc-offer"
	EventAnswer         = "webrtc-answer"
	EventICECandidate   = "webrtc-ice-candidate"
	EventRelayState     = "audio-relay-state"
	EventRelayedAudio   = "relayed-audio"
	EventChatMessage    = "chat-message"
	EventDirectMessage  = "direct-message"
	EventReaction       = "message-reaction"
	EventRoomMessages   = "room-messages"
	EventDirectMessages = "direct-messages"
)

// Event is the envelope of every outbound socket message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func NewEvent(typ string, data any) Event { return Event{Type: typ, Data: data} }

func (e Event) Encode() (Frame, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
