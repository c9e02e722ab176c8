package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/auth"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Verifier *auth.Verifier
	opts     Options
	handlers map[string]handlerFunc
}

func NewSignalWSController(o *orch.Orchestrator, verifier *auth.Verifier, opts Options) *SignalWSController {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 1 << 20
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	ctl := &SignalWSController{Orch: o, Verifier: verifier, opts: opts}
	ctl.handlers = ctl.routes()
	return ctl
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// identity resolves the optional bearer token. A missing token means guest;
// a present but invalid one is rejected.
func (ctl *SignalWSController) identity(c *gin.Context) (*domain.Identity, error) {
	token := c.Query("token")
	if token == "" {
		token = auth.TokenFromHeader(c.GetHeader("Authorization"))
	}
	if token == "" || ctl.Verifier == nil || !ctl.Verifier.Enabled() {
		return nil, nil
	}
	return ctl.Verifier.Verify(token)
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ident, err := ctl.identity(c)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrExpiredToken) {
			log.Info().Str("module", "signal").Msg("expired token")
		}
		c.AbortWithStatusJSON(status, gin.H{"success": false, "error": gin.H{"code": "unauthorized", "message": err.Error()}})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := domain.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).
		Str("client_token", c.GetString("client_token")).Bool("auth", ident != nil).Msg("new WS connection")

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	ctx, cancel := context.WithCancel(ctx)

	go ctl.writePump(ctx, sid, conn)

	if _, err := ctl.Orch.Connect(ctx, orch.ConnectRequest{
		SID:         sid,
		Identity:    ident,
		DisplayName: c.Query("name"),
		Conn:        conn,
	}); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("connect")
		cancel()
		conn.Close()
		return
	}

	go func() {
		defer cancel()
		ctl.readPump(ctx, sid, conn)
	}()
}
