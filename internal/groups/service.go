package groups

import (
	"context"
	"log/slog"
)

type UserRepository interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	CreateUser(ctx context.Context, u *User) error
}

type GroupRepository interface {
	GetGroup(ctx context.Context, groupID int64) (*Group, error)
	ListGroups(ctx context.Context) ([]*Group, error)
	CreateGroup(ctx context.Context, g *Group) error
	UpdateGroup(ctx context.Context, g *Group) error
	MarkGroupDeleted(ctx context.Context, groupID int64) error
	SetNotificationSetting(ctx context.Context, groupID int64, setting NotificationSetting) error
	DeleteGroup(ctx context.Context, groupID int64) error
}

type ParticipantRepository interface {
	ListParticipants(ctx context.Context, groupID int64) ([]*Participant, error)
	GetParticipant(ctx context.Context, groupID, userID int64) (*Participant, error)
	CreateParticipants(ctx context.Context, ps []*Participant) error
	SetParticipantActive(ctx context.Context, groupID, userID int64, active bool) error
}

type ConversationRepository interface {
	GetConversation(ctx context.Context, conversationID int64) (*Conversation, error)
	ListConversations(ctx context.Context, groupID int64) ([]*Conversation, error)
	CreateConversations(ctx context.Context, cs []*Conversation) error
	// UpdateConversations writes title, admin and closed flag only.
	UpdateConversations(ctx context.Context, cs []*Conversation) error
	MarkConversationsClosed(ctx context.Context, conversationIDs []int64) error
}

type MessageRepository interface {
	// MaxMessageNumber returns 0 for a conversation without messages.
	MaxMessageNumber(ctx context.Context, conversationID int64) (int, error)
	ListMessages(ctx context.Context, conversationID int64) ([]*Message, error)
	CreateMessages(ctx context.Context, ms []*Message) error
	ListMessagesPendingAuthor(ctx context.Context, groupID int64) ([]*Message, error)
	SetMessageAuthor(ctx context.Context, messageID, authorID int64) error
	DeleteMessagesOfConversation(ctx context.Context, conversationID int64) error
}

type BallotRepository interface {
	GetBallot(ctx context.Context, ballotID int64) (*Ballot, error)
	ListBallots(ctx context.Context, groupID int64) ([]*Ballot, error)
	// CreateBallot stores the ballot with its options and votes atomically.
	CreateBallot(ctx context.Context, b *Ballot) error
	// UpdateBallot writes ballot fields only, never options.
	UpdateBallot(ctx context.Context, b *Ballot) error
	DeleteBallot(ctx context.Context, ballotID int64) error
}

type OptionRepository interface {
	ListOptions(ctx context.Context, ballotID int64) ([]*Option, error)
	CreateOption(ctx context.Context, o *Option) error
	UpdateOptionText(ctx context.Context, optionID int64, text string) error
	DeleteOption(ctx context.Context, optionID int64) error
}

type VoteRepository interface {
	ListVoters(ctx context.Context, optionID int64) ([]int64, error)
	HasVote(ctx context.Context, optionID, userID int64) (bool, error)
	// ListUserVotes returns the options of ballotID the user voted for.
	ListUserVotes(ctx context.Context, ballotID, userID int64) ([]int64, error)
	CreateVote(ctx context.Context, v Vote) error
	DeleteVote(ctx context.Context, v Vote) error
}

// Store is the local cache the engine keeps in sync.
type Store interface {
	UserRepository
	GroupRepository
	ParticipantRepository
	ConversationRepository
	MessageRepository
	BallotRepository
	OptionRepository
	VoteRepository
}

type Service struct {
	store  Store
	remote Gateway
	picker AdminPicker
	salt   []byte
	logger *slog.Logger
}

type ServiceOption func(*Service)

// WithAdminPicker replaces the random admin selection used when an admin
// leaves a group.
func WithAdminPicker(p AdminPicker) ServiceOption {
	return func(s *Service) { s.picker = p }
}

// WithPasswordSalt sets the salt mixed into group password hashes.
func WithPasswordSalt(salt string) ServiceOption {
	return func(s *Service) { s.salt = []byte(salt) }
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func NewService(store Store, remote Gateway, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		remote: remote,
		picker: RandomPicker{},
		salt:   []byte(defaultPasswordSalt),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
