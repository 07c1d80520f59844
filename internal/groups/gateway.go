package groups

import "context"

// Gateway is the authoritative remote copy. Every method fails with a
// *RemoteError when the server rejects the request or cannot be reached.
type Gateway interface {
	GroupGateway
	ConversationGateway
	BallotGateway
}

type GroupGateway interface {
	ListGroups(ctx context.Context) ([]*Group, error)
	FetchGroup(ctx context.Context, groupID int64) (*Group, error)
	CreateGroup(ctx context.Context, g *Group) (*Group, error)
	UpdateGroup(ctx context.Context, groupID int64, delta GroupDelta) (*Group, error)
	DeleteGroup(ctx context.Context, groupID int64) error
	JoinGroup(ctx context.Context, groupID int64, passwordHash string) error
	FetchParticipants(ctx context.Context, groupID int64) ([]*RemoteParticipant, error)
	RemoveParticipant(ctx context.Context, groupID, userID int64) error
}

type ConversationGateway interface {
	// FetchConversations returns the conversations of a group with their
	// messages nested.
	FetchConversations(ctx context.Context, groupID int64) ([]*Conversation, error)
	FetchConversation(ctx context.Context, groupID, conversationID int64) (*Conversation, error)
	CreateConversation(ctx context.Context, groupID int64, c *Conversation) (*Conversation, error)
	CloseConversation(ctx context.Context, groupID, conversationID int64) error
	// FetchMessages returns the messages numbered above afterNumber.
	FetchMessages(ctx context.Context, groupID, conversationID int64, afterNumber int) ([]*Message, error)
	CreateMessage(ctx context.Context, groupID, conversationID int64, m *Message) (*Message, error)
}

type BallotGateway interface {
	// FetchBallots returns the ballots of a group with options and voter ids
	// nested.
	FetchBallots(ctx context.Context, groupID int64) ([]*Ballot, error)
	FetchBallot(ctx context.Context, groupID, ballotID int64) (*Ballot, error)
	CreateBallot(ctx context.Context, groupID int64, b *Ballot) (*Ballot, error)
	UpdateBallot(ctx context.Context, groupID, ballotID int64, delta BallotDelta) (*Ballot, error)
	DeleteBallot(ctx context.Context, groupID, ballotID int64) error
	CreateOption(ctx context.Context, groupID, ballotID int64, o *Option) (*Option, error)
	DeleteOption(ctx context.Context, groupID, ballotID, optionID int64) error
	// PlaceVote fails with ErrAlreadyVoted when the vote already exists.
	PlaceVote(ctx context.Context, groupID, ballotID, optionID int64) error
	RemoveVote(ctx context.Context, groupID, ballotID, optionID int64) error
}
