package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// Inbound event types.
const (
	inPing              = "ping"
	inWhoAmI            = "whoami"
	inRename            = "rename"
	inGetRooms          = "get-rooms"
	inCreateRoom        = "create-room"
	inJoinRoom          = "join-room"
	inLeaveRoom         = "leave-room"
	inLockRoom          = "lock-room"
	inUnlockRoom        = "unlock-room"
	inUpdateRoom        = "update-room"
	inDeleteRoom        = "delete-room"
	inOffer             = "webrtc-offer"
	inAnswer            = "webrtc-answer"
	inICECandidate      = "webrtc-ice-candidate"
	inEnableRelay       = "enable-audio-relay"
	inAudioData         = "audio-data"
	inAudioSettings     = "update-audio-settings"
	inChatMessage       = "chat-message"
	inDirectMessage     = "direct-message"
	inReaction          = "message-reaction"
	inGetRoomMessages   = "get-room-messages"
	inGetDirectMessages = "get-direct-messages"
)

func (ctl *SignalWSController) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		inPing:              ctl.handlePing,
		inWhoAmI:            ctl.handleWhoAmI,
		inRename:            ctl.handleRename,
		inGetRooms:          ctl.handleGetRooms,
		inCreateRoom:        ctl.handleCreateRoom,
		inJoinRoom:          ctl.handleJoin,
		inLeaveRoom:         ctl.handleLeave,
		inLockRoom:          ctl.handleLock,
		inUnlockRoom:        ctl.handleUnlock,
		inUpdateRoom:        ctl.handleUpdate,
		inDeleteRoom:        ctl.handleDelete,
		inOffer:             ctl.forward(app.SignalOffer),
		inAnswer:            ctl.forward(app.SignalAnswer),
		inICECandidate:      ctl.forward(app.SignalICECandidate),
		inEnableRelay:       ctl.handleEnableRelay,
		inAudioData:         ctl.handleAudioData,
		inAudioSettings:     ctl.handleAudioSettings,
		inChatMessage:       ctl.handleChat,
		inDirectMessage:     ctl.handleDirect,
		inReaction:          ctl.handleReaction,
		inGetRoomMessages:   ctl.handleRoomHistory,
		inGetDirectMessages: ctl.handleDirectHistory,
	}
}

func (ctl *SignalWSController) handlePing(_ context.Context, _ domain.SessionID, c core.SignalConnection, _ json.RawMessage) error {
	ctl.Orch.Ping(c)
	return nil
}

func (ctl *SignalWSController) handleGetRooms(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, _ json.RawMessage) error {
	return ctl.Orch.SendRoomList(ctx, sid)
}
