package groups

type Ballot struct {
	ID             int64
	GroupID        int64
	AdminID        int64
	Title          string
	Description    string
	MultipleChoice bool
	Closed         bool
	Options        []*Option
}

type Option struct {
	ID       int64
	BallotID int64
	Text     string
	VoterIDs []int64
}

type Vote struct {
	OptionID int64
	UserID   int64
}

// BallotDelta carries only the ballot fields that changed during an edit.
type BallotDelta struct {
	Title       *string
	Description *string
	Closed      *bool
}

func (d BallotDelta) Empty() bool {
	return d.Title == nil && d.Description == nil && d.Closed == nil
}

func (d BallotDelta) Apply(b *Ballot) {
	if d.Title != nil {
		b.Title = *d.Title
	}
	if d.Description != nil {
		b.Description = *d.Description
	}
	if d.Closed != nil {
		b.Closed = *d.Closed
	}
}

// ComputeBallotDelta returns the fields of next that differ from prev.
func ComputeBallotDelta(prev, next *Ballot) BallotDelta {
	var d BallotDelta
	if prev.Title != next.Title {
		d.Title = &next.Title
	}
	if prev.Description != next.Description {
		d.Description = &next.Description
	}
	if prev.Closed != next.Closed {
		d.Closed = &next.Closed
	}
	return d
}

// referencedUsers lists the admin and every voter of the ballot, without
// duplicates.
func (b *Ballot) referencedUsers() []int64 {
	seen := map[int64]struct{}{b.AdminID: {}}
	users := []int64{b.AdminID}
	for _, o := range b.Options {
		for _, v := range o.VoterIDs {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			users = append(users, v)
		}
	}
	return users
}

func syncedBallotFieldsEqual(a, b *Ballot) bool {
	return a.Title == b.Title &&
		a.Description == b.Description &&
		a.AdminID == b.AdminID &&
		a.MultipleChoice == b.MultipleChoice &&
		a.Closed == b.Closed
}
