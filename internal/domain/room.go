package domain

import "time"

type RoomID string

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate:
		return true
	}
	return false
}

type AccessType string

const (
	AccessWebOnly AccessType = "web-only"
	AccessAppOnly AccessType = "app-only"
	AccessHybrid  AccessType = "hybrid"
	AccessHidden  AccessType = "hidden"
)

func (a AccessType) Valid() bool {
	switch a {
	case AccessWebOnly, AccessAppOnly, AccessHybrid, AccessHidden:
		return true
	}
	return false
}

// Flags derives the embed/app visibility switches.
func (a AccessType) Flags() (allowEmbed, showInApp bool) {
	switch a {
	case AccessWebOnly:
		return true, false
	case AccessAppOnly:
		return false, true
	case AccessHybrid:
		return true, true
	default:
		return false, false
	}
}

// AutoLock is the optional automatic locking policy of a room.
// Zero values disable the corresponding rule.
type AutoLock struct {
	AfterUsers   int  `json:"afterUsers,omitempty"`
	AfterMinutes int  `json:"afterMinutes,omitempty"`
	OnHostLeave  bool `json:"onHostLeave,omitempty"`
}

const (
	LockAutoUsers     = "auto-users"
	LockAutoTime      = "auto-time"
	LockAutoHostLeave = "auto-host-leave"
)

type Room struct {
	ID            RoomID     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Members       []*Member  `json:"-"`
	MaxUsers      int        `json:"maxUsers"`
	PasswordHash  []byte     `json:"passwordHash,omitempty"`
	Visibility    Visibility `json:"visibility"`
	AccessType    AccessType `json:"accessType"`
	AllowEmbed    bool       `json:"allowEmbed"`
	ShowInApp     bool       `json:"showInApp"`
	Locked        bool       `json:"locked"`
	LockedAt      time.Time  `json:"lockedAt,omitzero"`
	LockedBy      string     `json:"lockedBy,omitempty"`
	LockReason    string     `json:"lockReason,omitempty"`
	AutoLock      *AutoLock  `json:"autoLock,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExpiresAt     time.Time  `json:"expiresAt,omitzero"`
	EmptySince    time.Time  `json:"emptySince,omitzero"`
	CreatorHandle string     `json:"creatorHandle,omitempty"`
	Keep          bool       `json:"keep,omitempty"`
}

func (r *Room) HasPassword() bool { return len(r.PasswordHash) > 0 }

func (r *Room) HasExpiry() bool { return !r.ExpiresAt.IsZero() }

func (r *Room) MemberCount() int { return len(r.Members) }

func (r *Room) IsFull() bool { return len(r.Members) >= r.MaxUsers }

// Listed reports whether the room appears in public room lists.
func (r *Room) Listed() bool {
	return r.Visibility == VisibilityPublic && r.AccessType != AccessHidden
}

func (r *Room) Member(sid SessionID) (*Member, bool) {
	for _, m := range r.Members {
		if m.SessionID == sid {
			return m, true
		}
	}
	return nil, false
}

// AddMember appends m unless the connection is already present.
func (r *Room) AddMember(m *Member) bool {
	if _, ok := r.Member(m.SessionID); ok {
		return false
	}
	r.Members = append(r.Members, m)
	r.EmptySince = time.Time{}
	return true
}

func (r *Room) RemoveMember(sid SessionID, now time.Time) (*Member, bool) {
	for i, m := range r.Members {
		if m.SessionID != sid {
			continue
		}
		r.Members = append(r.Members[:i], r.Members[i+1:]...)
		if len(r.Members) == 0 {
			r.EmptySince = now
		}
		return m, true
	}
	return nil, false
}

func (r *Room) Lock(by, reason string, at time.Time) {
	r.Locked = true
	r.LockedAt = at
	r.LockedBy = by
	r.LockReason = reason
}

func (r *Room) Unlock() {
	r.Locked = false
	r.LockedAt = time.Time{}
	r.LockedBy = ""
	r.LockReason = ""
}

// RoomSummary is the read-only listing view of a room.
type RoomSummary struct {
	ID          RoomID     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	MemberCount int        `json:"memberCount"`
	MaxUsers    int        `json:"maxUsers"`
	Locked      bool       `json:"locked"`
	HasPassword bool       `json:"hasPassword"`
	Visibility  Visibility `json:"visibility"`
	AccessType  AccessType `json:"accessType"`
	AllowEmbed  bool       `json:"allowEmbed"`
	ShowInApp   bool       `json:"showInApp"`
	ExpiresAt   time.Time  `json:"expiresAt,omitzero"`
	Origin      string     `json:"origin,omitempty"`
}

func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		MemberCount: len(r.Members),
		MaxUsers:    r.MaxUsers,
		Locked:      r.Locked,
		HasPassword: r.HasPassword(),
		Visibility:  r.Visibility,
		AccessType:  r.AccessType,
		AllowEmbed:  r.AllowEmbed,
		ShowInApp:   r.ShowInApp,
		ExpiresAt:   r.ExpiresAt,
	}
}

// RoomView is the detailed read-only view including lock state and members.
type RoomView struct {
	RoomSummary
	LockedAt      time.Time `json:"lockedAt,omitzero"`
	LockedBy      string    `json:"lockedBy,omitempty"`
	LockReason    string    `json:"lockReason,omitempty"`
	AutoLock      *AutoLock `json:"autoLock,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatorHandle string    `json:"creatorHandle,omitempty"`
	Members       []Member  `json:"members"`
}

func (r *Room) View() RoomView {
	v := RoomView{
		RoomSummary:   r.Summary(),
		LockedAt:      r.LockedAt,
		LockedBy:      r.LockedBy,
		LockReason:    r.LockReason,
		CreatedAt:     r.CreatedAt,
		CreatorHandle: r.CreatorHandle,
		Members:       make([]Member, 0, len(r.Members)),
	}
	if r.AutoLock != nil {
		al := *r.AutoLock
		v.AutoLock = &al
	}
	for _, m := range r.Members {
		v.Members = append(v.Members, *m)
	}
	return v
}
