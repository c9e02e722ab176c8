package app

import "github.com/dkeye/voicerooms/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a member whose outbound buffer is full
// while audio is being fanned out to it.
type Policy interface {
	OnBackPressure(room *domain.Room, member *domain.Member) BackpressureAction
}

type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(*domain.Room, *domain.Member) BackpressureAction {
	return p.Action
}

// PolicyFor maps the relay.slow_consumer setting ("drop" or "kick").
func PolicyFor(mode string) Policy {
	if mode == "kick" {
		return SimplePolicy{Action: KickMember}
	}
	return SimplePolicy{Action: DropFrame}
}
