package domain

import "time"

type SpatialPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type AudioSettings struct {
	Muted           bool            `json:"muted"`
	Volume          float64         `json:"volume"`
	SpatialPosition SpatialPosition `json:"spatialPosition"`
	OutputDevice    string          `json:"outputDevice,omitempty"`
}

func DefaultAudioSettings() AudioSettings {
	return AudioSettings{Volume: 1}
}

// Member represents a connection's participation in one room.
// No transport or lifecycle logic here.
type Member struct {
	SessionID       SessionID     `json:"connectionId"`
	DisplayName     string        `json:"displayName"`
	JoinedAt        time.Time     `json:"joinedAt"`
	IsAuthenticated bool          `json:"isAuthenticated"`
	Handle          string        `json:"-"`
	Audio           AudioSettings `json:"audioSettings"`
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(s *Session, at time.Time) *Member {
	return &Member{
		SessionID:       s.ID,
		DisplayName:     s.DisplayName,
		JoinedAt:        at,
		IsAuthenticated: s.Authenticated(),
		Handle:          s.Handle(),
		Audio:           DefaultAudioSettings(),
	}
}
