package app

import (
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// RoomList is the payload of the room-list event.
type RoomList struct {
	Rooms    []domain.RoomSummary `json:"rooms"`
	External []domain.RoomSummary `json:"external"`
}

// Presence derives read-only room views and pushes them to connections.
type Presence struct {
	rooms      *RoomStore
	reg        *Registry
	federation core.FederationGateway
}

func NewPresence(rooms *RoomStore, reg *Registry, federation core.FederationGateway) *Presence {
	return &Presence{rooms: rooms, reg: reg, federation: federation}
}

// Snapshot summarizes every local room.
func (p *Presence) Snapshot() []domain.RoomSummary {
	all := p.rooms.All()
	out := make([]domain.RoomSummary, 0, len(all))
	for _, r := range all {
		out = append(out, r.Summary())
	}
	return out
}

// Listed summarizes rooms that appear in public lists.
func (p *Presence) Listed() []domain.RoomSummary {
	out := []domain.RoomSummary{}
	for _, r := range p.rooms.All() {
		if r.Listed() {
			out = append(out, r.Summary())
		}
	}
	return out
}

func (p *Presence) RoomList() RoomList {
	l := RoomList{Rooms: p.Listed(), External: []domain.RoomSummary{}}
	if p.federation != nil {
		if ext := p.federation.ExternalRooms(); len(ext) > 0 {
			l.External = ext
		}
	}
	return l
}

func (p *Presence) SendRoomList(sid domain.SessionID) {
	_ = p.reg.Send(sid, core.NewEvent(core.EventRoomList, p.RoomList()))
}

func (p *Presence) BroadcastRoomList() {
	p.reg.BroadcastAll(core.NewEvent(core.EventRoomList, p.RoomList()))
}

// MemberIDs lists the connections currently in room id.
func (p *Presence) MemberIDs(id domain.RoomID) []domain.SessionID {
	room, ok := p.rooms.Get(id)
	if !ok {
		return nil
	}
	out := make([]domain.SessionID, 0, len(room.Members))
	for _, m := range room.Members {
		out = append(out, m.SessionID)
	}
	return out
}

// ToRoom sends ev to every member of room id except skip.
func (p *Presence) ToRoom(id domain.RoomID, ev core.Event, skip domain.SessionID) {
	p.reg.Broadcast(p.MemberIDs(id), ev, skip)
}
