package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

func (k SignalKind) event() (string, bool) {
	switch k {
	case SignalOffer:
		return core.EventOffer, true
	case SignalAnswer:
		return core.EventAnswer, true
	case SignalICECandidate:
		return core.EventICECandidate, true
	}
	return "", false
}

// SignalPayload is what the target receives. Payload is passed through as is.
type SignalPayload struct {
	From    domain.SessionID `json:"fromConnectionId"`
	Name    string           `json:"fromName,omitempty"`
	Payload json.RawMessage  `json:"payload"`
}

// SignalingRelay forwards WebRTC negotiation between two live connections.
type SignalingRelay struct {
	reg *Registry
}

func NewSignalingRelay(reg *Registry) *SignalingRelay {
	return &SignalingRelay{reg: reg}
}

// Forward delivers payload to to exactly once. A missing target is dropped
// silently and reported as false; there is no retry.
func (s *SignalingRelay) Forward(kind SignalKind, from, to domain.SessionID, payload json.RawMessage) bool {
	typ, ok := kind.event()
	if !ok {
		return false
	}
	name := ""
	if sess, ok := s.reg.Get(from); ok {
		name = sess.DisplayName
	}
	err := s.reg.Send(to, core.NewEvent(typ, SignalPayload{From: from, Name: name, Payload: payload}))
	if err != nil {
		log.Debug().Err(err).Str("module", "app.signaling").Str("sid", string(from)).
			Str("target", string(to)).Str("kind", string(kind)).Msg("signal dropped")
		return false
	}
	return true
}
