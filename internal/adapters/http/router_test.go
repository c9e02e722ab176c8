package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/auth"
	"github.com/dkeye/voicerooms/internal/config"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/core/coretest"
	"github.com/dkeye/voicerooms/internal/core/mocks"
	"github.com/dkeye/voicerooms/internal/domain"
)

const adminToken = "ops-token"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *domain.Error   `json:"error"`
}

func newTestRouter(t *testing.T, fed core.FederationGateway) (*gin.Engine, *orch.Orchestrator, *auth.Verifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)
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
	}, coretest.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)), fed, nil)
	go o.Run(ctx)

	verifier := auth.NewVerifier("jwt-secret")
	cfg := &config.Config{Mode: "test", Secret: "cookie-secret", AdminToken: adminToken}
	return SetupRouter(ctx, cfg, o, verifier), o, verifier
}

func do(t *testing.T, r http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHealthz(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)
	w, env := do(t, r, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, w.Result().Cookies(), "client token cookie is issued")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)
	for _, token := range []string{"", "wrong"} {
		w, env := do(t, r, http.MethodGet, "/api/rooms", token, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, env.Success)
	}
	w, _ := do(t, r, http.MethodGet, "/api/rooms", adminToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", AdminMiddleware(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	w, _ := do(t, r, http.MethodGet, "/x", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoomLifecycle(t *testing.T) {
	r, o, _ := newTestRouter(t, nil)
	_, err := o.CreateKeepRoom(context.Background(), app.RoomSpec{ID: "lobby", Name: "Lobby"})
	require.NoError(t, err)

	w, env := do(t, r, http.MethodGet, "/api/rooms/lobby", adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var view domain.RoomView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "Lobby", view.Name)

	w, env = do(t, r, http.MethodPost, "/api/rooms/lobby/lock", adminToken, `{"by":"ops","reason":"maintenance"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.True(t, view.Locked)
	assert.Equal(t, "ops", view.LockedBy)
	assert.Equal(t, "maintenance", view.LockReason)

	w, env = do(t, r, http.MethodPost, "/api/rooms/lobby/lock", adminToken, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "already_locked", env.Error.Code)

	w, _ = do(t, r, http.MethodPost, "/api/rooms/lobby/unlock", adminToken, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodDelete, "/api/rooms/lobby", adminToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = do(t, r, http.MethodGet, "/api/rooms/lobby", adminToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "room_not_found", env.Error.Code)
}

func TestLockRejectsBadBody(t *testing.T) {
	r, o, _ := newTestRouter(t, nil)
	_, err := o.CreateKeepRoom(context.Background(), app.RoomSpec{ID: "lobby"})
	require.NoError(t, err)
	w, env := do(t, r, http.MethodPost, "/api/rooms/lobby/lock", adminToken, "{")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "bad_payload", env.Error.Code)
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(domain.ErrConnectionNotFound))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(domain.ErrRoomFull))
	assert.Equal(t, http.StatusBadGateway, statusFor(domain.ErrFederationUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(domain.ErrShuttingDown))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.ErrInternal))
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrRoomLocked))
}

func TestFederationRoomsListsLocalOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	fed := mocks.NewMockFederationGateway(ctrl)
	fed.EXPECT().Notify(gomock.Any(), gomock.Any()).AnyTimes()
	fed.EXPECT().ExternalRooms().Return([]domain.RoomSummary{{ID: "remote", Origin: "http://peer"}}).AnyTimes()
	fed.EXPECT().FetchExternalRooms(gomock.Any()).Return(nil).Times(1)

	r, o, _ := newTestRouter(t, fed)
	ctx := context.Background()
	_, err := o.CreateKeepRoom(ctx, app.RoomSpec{ID: "lobby"})
	require.NoError(t, err)
	_, err = o.CreateKeepRoom(ctx, app.RoomSpec{ID: "secret", Visibility: domain.VisibilityPrivate})
	require.NoError(t, err)

	w, env := do(t, r, http.MethodGet, "/api/federation/rooms", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rooms []domain.RoomSummary
	require.NoError(t, json.Unmarshal(env.Data, &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, domain.RoomID("lobby"), rooms[0].ID)

	w, env = do(t, r, http.MethodGet, "/api/rooms?refresh=true", adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list app.RoomList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Rooms, 1)
	require.Len(t, list.External, 1)
	assert.Equal(t, domain.RoomID("remote"), list.External[0].ID)
}

func TestRelayStatsRoute(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)
	w, env := do(t, r, http.MethodGet, "/api/relay/stats", adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bytesRelayed":0,"packetsRelayed":0,"activeRelays":0}`, string(env.Data))
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal" + query
}

func readEvent(t *testing.T, ws *websocket.Conn) coretest.Received {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev coretest.Received
	require.NoError(t, ws.ReadJSON(&ev))
	return ev
}

func TestSignalSocketRejectsInvalidToken(t *testing.T) {
	r, _, _ := newTestRouter(t, nil)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignalSocketSession(t *testing.T) {
	r, _, verifier := newTestRouter(t, nil)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	token, err := verifier.Issue("alice", "Alice", time.Hour)
	require.NoError(t, err)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	ev := readEvent(t, ws)
	require.Equal(t, core.EventWelcome, ev.Type)
	var welcome orch.Welcome
	require.NoError(t, json.Unmarshal(ev.Data, &welcome))
	assert.True(t, welcome.Authenticated)
	assert.Equal(t, "alice", welcome.Handle)
	assert.Equal(t, "Alice", welcome.DisplayName)
	assert.Equal(t, core.EventRoomList, readEvent(t, ws).Type)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, core.EventPong, readEvent(t, ws).Type)

	guest, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?name=Ann"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = guest.Close() })
	ev = readEvent(t, guest)
	require.NoError(t, json.Unmarshal(ev.Data, &welcome))
	assert.False(t, welcome.Authenticated)
	assert.Equal(t, "Ann", welcome.DisplayName)
	assert.NotEqual(t, "", string(welcome.ConnectionID))
}
