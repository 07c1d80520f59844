package groups

import "time"

// UnknownAuthor is stored as a message author when the real author is not yet
// known locally.
const UnknownAuthor int64 = 0

type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

type Conversation struct {
	ID       int64
	GroupID  int64
	AdminID  int64
	Title    string
	Closed   bool
	Messages []*Message
}

type Message struct {
	ID              int64
	ConversationID  int64
	AuthorID        int64
	PendingAuthorID int64 // server-side author while AuthorID is UnknownAuthor
	Number          int
	Text            string
	Priority        Priority
	Read            bool
	CreatedAt       time.Time
}

func syncedConversationFieldsEqual(a, b *Conversation) bool {
	return a.Title == b.Title && a.Closed == b.Closed && a.AdminID == b.AdminID
}
