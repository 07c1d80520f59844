package storage

import "nuclight.org/groupsync/internal/groups"

// Store bundles every repository over one database.
type Store struct {
	*UserRepository
	*GroupRepository
	*ParticipantRepository
	*ConversationRepository
	*MessageRepository
	*BallotRepository
	*OptionRepository
	*VoteRepository
}

var _ groups.Store = (*Store)(nil)

func NewStore(db *DB) *Store {
	return &Store{
		UserRepository:         NewUserRepository(db),
		GroupRepository:        NewGroupRepository(db),
		ParticipantRepository:  NewParticipantRepository(db),
		ConversationRepository: NewConversationRepository(db),
		MessageRepository:      NewMessageRepository(db),
		BallotRepository:       NewBallotRepository(db),
		OptionRepository:       NewOptionRepository(db),
		VoteRepository:         NewVoteRepository(db),
	}
}
