package groups

import "time"

// NotificationSetting is kept on the device only and never overwritten by sync.
type NotificationSetting int

const (
	NotifyAll NotificationSetting = iota
	NotifyPriorityOnly
	NotifyNone
)

type User struct {
	ID   int64
	Name string
}

type Group struct {
	ID                  int64
	Name                string
	Description         string
	Term                string
	AdminID             int64
	PasswordHash        string
	NotificationSetting NotificationSetting
	Deleted             bool
	ModifiedAt          time.Time
}

// NewGroup holds the user input for creating a group.
type NewGroup struct {
	Name        string
	Description string
	Term        string
	Password    string
}

// GroupChanges holds the user input for editing a group. Empty strings and a
// zero AdminID leave the corresponding field untouched.
type GroupChanges struct {
	Name        string
	Description string
	Term        string
	Password    string
	AdminID     int64
}

// GroupDelta carries only the fields that differ from the stored group.
type GroupDelta struct {
	Name         *string
	Description  *string
	Term         *string
	PasswordHash *string
	AdminID      *int64
}

func (d GroupDelta) Empty() bool {
	return d.Name == nil && d.Description == nil && d.Term == nil &&
		d.PasswordHash == nil && d.AdminID == nil
}

// Apply writes the delta onto g.
func (d GroupDelta) Apply(g *Group) {
	if d.Name != nil {
		g.Name = *d.Name
	}
	if d.Description != nil {
		g.Description = *d.Description
	}
	if d.Term != nil {
		g.Term = *d.Term
	}
	if d.PasswordHash != nil {
		g.PasswordHash = *d.PasswordHash
	}
	if d.AdminID != nil {
		g.AdminID = *d.AdminID
	}
}

type Participant struct {
	GroupID int64
	UserID  int64
	Active  bool
}

// RemoteParticipant is a participant as reported by the server, together with
// the user record it references.
type RemoteParticipant struct {
	User   User
	Active bool
}

// syncedGroupFieldsEqual compares the fields owned by the server.
func syncedGroupFieldsEqual(a, b *Group) bool {
	return a.Name == b.Name &&
		a.Description == b.Description &&
		a.Term == b.Term &&
		a.AdminID == b.AdminID &&
		a.PasswordHash == b.PasswordHash &&
		a.Deleted == b.Deleted &&
		a.ModifiedAt.Equal(b.ModifiedAt)
}
