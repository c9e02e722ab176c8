package signal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/core/coretest"
	"github.com/dkeye/voicerooms/internal/domain"
)

type fixture struct {
	t   *testing.T
	ctx context.Context
	o   *orch.Orchestrator
	ctl *SignalWSController
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o := orch.New(orch.Config{
		Rooms: app.RoomConfig{EmptyTTL: time.Minute, BcryptCost: 4},
		Limits: app.CreateLimits{
			GuestMaxUsers:    5,
			AuthMaxUsers:     50,
			GuestMinDuration: 10 * time.Minute,
			GuestMaxDuration: 30 * time.Minute,
		},
	}, coretest.NewFakeClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)), nil, nil)
	go o.Run(ctx)
	return &fixture{t: t, ctx: ctx, o: o, ctl: NewSignalWSController(o, nil, Options{})}
}

func (f *fixture) connect(sid string, ident *domain.Identity) *coretest.Conn {
	f.t.Helper()
	conn := coretest.NewConn()
	_, err := f.o.Connect(f.ctx, orch.ConnectRequest{SID: domain.SessionID(sid), Identity: ident, DisplayName: sid, Conn: conn})
	require.NoError(f.t, err)
	conn.Reset()
	return conn
}

func (f *fixture) send(sid string, conn *coretest.Conn, typ string, data any) {
	f.t.Helper()
	env := map[string]any{"type": typ}
	if data != nil {
		env["data"] = data
	}
	raw, err := json.Marshal(env)
	require.NoError(f.t, err)
	f.ctl.handleSignal(f.ctx, domain.SessionID(sid), conn, raw)
}

func lastError(t *testing.T, conn *coretest.Conn) ErrorPayload {
	t.Helper()
	errs := conn.OfType(core.EventError)
	require.NotEmpty(t, errs)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(errs[len(errs)-1].Data, &p))
	return p
}

func TestRoutesCoverEveryInboundType(t *testing.T) {
	f := newFixture(t)
	for _, typ := range []string{
		inPing, inWhoAmI, inRename, inGetRooms, inCreateRoom, inJoinRoom, inLeaveRoom,
		inLockRoom, inUnlockRoom, inUpdateRoom, inDeleteRoom, inOffer, inAnswer,
		inICECandidate, inEnableRelay, inAudioData, inAudioSettings, inChatMessage,
		inDirectMessage, inReaction, inGetRoomMessages, inGetDirectMessages,
	} {
		assert.Contains(t, f.ctl.handlers, typ)
	}
}

func TestBadEnvelope(t *testing.T) {
	f := newFixture(t)
	conn := f.connect("a", nil)

	f.ctl.handleSignal(f.ctx, "a", conn, []byte("{nope"))
	p := lastError(t, conn)
	assert.Equal(t, "bad_payload", p.Code)
	assert.Empty(t, p.Request)

	f.send("a", conn, "teleport", nil)
	p = lastError(t, conn)
	assert.Equal(t, "bad_payload", p.Code)
	assert.Equal(t, "teleport", p.Request)

	f.send("a", conn, inJoinRoom, "not an object")
	assert.Len(t, conn.OfType(core.EventError), 3)
}

func TestPingAndWhoAmI(t *testing.T) {
	f := newFixture(t)
	conn := f.connect("a", nil)
	f.send("a", conn, inPing, nil)
	assert.Len(t, conn.OfType(core.EventPong), 1)

	f.send("a", conn, inRename, map[string]string{"displayName": "Neo"})
	conn.Reset()
	f.send("a", conn, inWhoAmI, nil)
	who := conn.OfType(core.EventWhoAmI)
	require.Len(t, who, 1)
	var w orch.WhoAmI
	require.NoError(t, json.Unmarshal(who[0].Data, &w))
	assert.Equal(t, "Neo", w.DisplayName)
	assert.False(t, w.Authenticated)
}

func TestRoomFlowOverSocket(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("a", &domain.Identity{Handle: "alice"})
	bob := f.connect("b", nil)

	f.send("a", alice, inCreateRoom, map[string]any{"id": "team", "name": "Team", "maxUsers": 3})
	require.Len(t, alice.OfType(core.EventRoomCreated), 1)

	f.send("b", bob, inJoinRoom, map[string]any{})
	assert.Equal(t, "bad_payload", lastError(t, bob).Code)

	f.send("a", alice, inJoinRoom, map[string]any{"roomId": "team"})
	f.send("b", bob, inJoinRoom, map[string]any{"roomId": "team", "displayName": "Bobby"})
	require.Len(t, bob.OfType(core.EventRoomJoined), 1)
	joined := alice.OfType(core.EventUserJoined)
	require.Len(t, joined, 1)
	var ev orch.MemberEvent
	require.NoError(t, json.Unmarshal(joined[0].Data, &ev))
	assert.Equal(t, "Bobby", ev.Member.DisplayName)

	f.send("b", bob, inLockRoom, map[string]any{"roomId": "team"})
	assert.Equal(t, "forbidden", lastError(t, bob).Code)

	f.send("a", alice, inLockRoom, map[string]any{"roomId": "team", "reason": "meeting"})
	assert.Len(t, bob.OfType(core.EventRoomLocked), 1)
	f.send("a", alice, inUnlockRoom, map[string]any{"roomId": "team"})
	assert.Len(t, bob.OfType(core.EventRoomUnlocked), 1)

	f.send("a", alice, inUpdateRoom, map[string]any{"roomId": "team", "maxUsers": 1})
	assert.Equal(t, "below_member_count", lastError(t, alice).Code)
	f.send("a", alice, inUpdateRoom, map[string]any{"roomId": "team", "name": "Renamed"})
	assert.Len(t, bob.OfType(core.EventRoomUpdated), 1)

	f.send("b", bob, inLeaveRoom, nil)
	assert.Len(t, bob.OfType(core.EventRoomLeft), 1)
	f.send("b", bob, inLeaveRoom, nil)
	assert.Equal(t, "not_in_room", lastError(t, bob).Code)

	f.send("a", alice, inDeleteRoom, map[string]any{"roomId": "team"})
	assert.Len(t, bob.OfType(core.EventRoomDeleted), 1)
}

func TestWebRTCForwarding(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("a", nil)
	bob := f.connect("b", nil)

	f.send("a", alice, inOffer, map[string]any{"targetConnectionId": "b", "payload": map[string]string{"sdp": "v=0"}})
	f.send("a", alice, inICECandidate, map[string]any{"targetConnectionId": "b", "payload": map[string]string{"candidate": "c"}})
	assert.Len(t, bob.OfType(core.EventOffer), 1)
	assert.Len(t, bob.OfType(core.EventICECandidate), 1)

	f.send("a", alice, inAnswer, map[string]any{"payload": map[string]string{"sdp": "v=0"}})
	assert.Equal(t, "bad_payload", lastError(t, alice).Code)
	assert.Empty(t, bob.OfType(core.EventAnswer))
}

func TestRelayOverSocket(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("a", nil)
	bob := f.connect("b", nil)
	f.send("a", alice, inCreateRoom, map[string]any{})
	created := alice.OfType(core.EventRoomCreated)
	require.Len(t, created, 1)
	var view domain.RoomView
	require.NoError(t, json.Unmarshal(created[0].Data, &view))

	for sid, conn := range map[string]*coretest.Conn{"a": alice, "b": bob} {
		f.send(sid, conn, inJoinRoom, map[string]any{"roomId": view.ID})
		f.send(sid, conn, inEnableRelay, map[string]any{"enabled": true, "sampleRate": 16000})
		require.Len(t, conn.OfType(core.EventRelayState), 1)
	}

	f.send("a", alice, inAudioData, map[string]any{"frame": []byte{7, 8, 9}})
	f.send("a", alice, inAudioData, map[string]any{"frame": []byte{}})
	_, err := f.o.RoomList(f.ctx)
	require.NoError(t, err)
	got := bob.OfType(core.EventRelayedAudio)
	require.Len(t, got, 1)

	f.send("b", bob, inAudioSettings, map[string]any{"volume": 5})
	assert.Equal(t, "bad_payload", lastError(t, bob).Code)
	f.send("b", bob, inAudioSettings, map[string]any{"muted": true})
	assert.NotEmpty(t, alice.OfType(core.EventMemberUpdated))
}

func TestChatOverSocket(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("a", nil)
	bob := f.connect("b", nil)

	f.send("a", alice, inChatMessage, map[string]any{"text": "hi"})
	assert.Equal(t, "not_in_room", lastError(t, alice).Code)

	f.send("a", alice, inDirectMessage, map[string]any{"text": "psst"})
	assert.Equal(t, "bad_payload", lastError(t, alice).Code)
	f.send("a", alice, inDirectMessage, map[string]any{"text": "psst", "targetConnectionId": "b"})
	dms := bob.OfType(core.EventDirectMessage)
	require.Len(t, dms, 1)
	var m domain.Message
	require.NoError(t, json.Unmarshal(dms[0].Data, &m))

	f.send("b", bob, inReaction, map[string]any{"reaction": "👍"})
	assert.Equal(t, "bad_payload", lastError(t, bob).Code)
	f.send("b", bob, inReaction, map[string]any{"messageId": m.ID, "reaction": "👍", "targetConnectionId": "a"})
	assert.Len(t, alice.OfType(core.EventReaction), 1)

	f.send("b", bob, inGetDirectMessages, map[string]any{"targetConnectionId": "a"})
	history := bob.OfType(core.EventDirectMessages)
	require.Len(t, history, 1)
	var page orch.DirectMessages
	require.NoError(t, json.Unmarshal(history[0].Data, &page))
	assert.Equal(t, domain.SessionID("a"), page.PeerID)
	require.Len(t, page.Messages, 1)

	f.send("b", bob, inGetRoomMessages, nil)
	assert.Equal(t, "not_in_room", lastError(t, bob).Code)
}

func TestGetRooms(t *testing.T) {
	f := newFixture(t)
	conn := f.connect("a", nil)
	f.send("a", conn, inGetRooms, nil)
	lists := conn.OfType(core.EventRoomList)
	require.Len(t, lists, 1)
	var l app.RoomList
	require.NoError(t, json.Unmarshal(lists[0].Data, &l))
	assert.Empty(t, l.Rooms)
}
