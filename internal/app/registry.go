package app

import (
	"errors"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

type sessionEntry struct {
	Session *domain.Session
	Conn    core.SignalConnection
}

// Registry maps live connections to their session state and transport.
// Like RoomStore it is owned by the orchestrator loop and has no locking.
type Registry struct {
	sessions map[domain.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.SessionID]*sessionEntry)}
}

// Bind registers a connection. Rebinding an existing sid replaces (and
// closes) the previous transport and keeps the session state.
func (r *Registry) Bind(sess *domain.Session, conn core.SignalConnection) (*domain.Session, bool) {
	if e, ok := r.sessions[sess.ID]; ok {
		if e.Conn != nil && e.Conn != conn {
			e.Conn.Close()
		}
		e.Conn = conn
		log.Info().Str("module", "app.registry").Str("sid", string(sess.ID)).Msg("rebound session")
		return e.Session, true
	}
	r.sessions[sess.ID] = &sessionEntry{Session: sess, Conn: conn}
	log.Info().Str("module", "app.registry").Str("sid", string(sess.ID)).Bool("auth", sess.Authenticated()).Msg("bound session")
	return sess, false
}

func (r *Registry) Unbind(sid domain.SessionID) (*domain.Session, bool) {
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return e.Session, true
}

func (r *Registry) Get(sid domain.SessionID) (*domain.Session, bool) {
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.Session, true
}

func (r *Registry) Conn(sid domain.SessionID) (core.SignalConnection, bool) {
	e, ok := r.sessions[sid]
	if !ok || e.Conn == nil {
		return nil, false
	}
	return e.Conn, true
}

func (r *Registry) RoomOf(sid domain.SessionID) (domain.RoomID, bool) {
	e, ok := r.sessions[sid]
	if !ok || e.Session.RoomID == "" {
		return "", false
	}
	return e.Session.RoomID, true
}

func (r *Registry) SetRoom(sid domain.SessionID, id domain.RoomID) bool {
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Session.RoomID = id
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room_id", string(id)).Msg("updated room")
	return true
}

func (r *Registry) ClearRoom(sid domain.SessionID) {
	if e, ok := r.sessions[sid]; ok {
		e.Session.RoomID = ""
	}
}

func (r *Registry) Rename(sid domain.SessionID, name string) (string, error) {
	e, ok := r.sessions[sid]
	if !ok {
		return "", domain.ErrConnectionNotFound
	}
	name, err := domain.NormalizeDisplayName(name)
	if err != nil {
		return "", err
	}
	e.Session.DisplayName = name
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", name).Msg("updated username")
	return name, nil
}

func (r *Registry) Count() int { return len(r.sessions) }

// IDs returns all bound sids in stable order.
func (r *Registry) IDs() []domain.SessionID {
	out := make([]domain.SessionID, 0, len(r.sessions))
	for sid := range r.sessions {
		out = append(out, sid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SendFrame delivers an already encoded frame. Closed and missing
// connections are reported as ErrConnectionNotFound.
func (r *Registry) SendFrame(sid domain.SessionID, f core.Frame) error {
	conn, ok := r.Conn(sid)
	if !ok {
		return domain.ErrConnectionNotFound
	}
	err := conn.TrySend(f)
	if errors.Is(err, core.ErrConnClosed) {
		return domain.ErrConnectionNotFound
	}
	return err
}

func (r *Registry) Send(sid domain.SessionID, ev core.Event) error {
	f, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("type", ev.Type).Msg("encode event")
		return err
	}
	if err := r.SendFrame(sid, f); err != nil {
		if errors.Is(err, core.ErrBackpressure) {
			log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Str("type", ev.Type).Msg("dropped event on full buffer")
		}
		return err
	}
	return nil
}

// Broadcast encodes ev once and sends it to every sid except skip.
func (r *Registry) Broadcast(sids []domain.SessionID, ev core.Event, skip domain.SessionID) {
	f, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("type", ev.Type).Msg("encode event")
		return
	}
	for _, sid := range sids {
		if sid == skip {
			continue
		}
		if err := r.SendFrame(sid, f); err != nil && errors.Is(err, core.ErrBackpressure) {
			log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Str("type", ev.Type).Msg("dropped event on full buffer")
		}
	}
}

func (r *Registry) BroadcastAll(ev core.Event) {
	r.Broadcast(r.IDs(), ev, "")
}

// Close shuts the transport of sid without unbinding it; the adapter's
// read pump reports the disconnect.
func (r *Registry) Close(sid domain.SessionID) bool {
	conn, ok := r.Conn(sid)
	if !ok {
		return false
	}
	conn.Close()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("closed session transport")
	return true
}
