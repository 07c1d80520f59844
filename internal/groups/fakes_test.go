package groups

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"nuclight.org/groupsync/internal/session"
)

// memStore is an in-memory Store. Every mutating call bumps writes so tests
// can assert that a pass wrote nothing.
type memStore struct {
	mu            sync.Mutex
	users         map[int64]*User
	groups        map[int64]*Group
	participants  map[[2]int64]*Participant
	conversations map[int64]*Conversation
	messages      []*Message
	nextMessageID int64
	ballots       map[int64]*Ballot
	options       map[int64]*Option
	votes         map[Vote]struct{}
	writes        int
	fail          map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[int64]*User),
		groups:        make(map[int64]*Group),
		participants:  make(map[[2]int64]*Participant),
		conversations: make(map[int64]*Conversation),
		ballots:       make(map[int64]*Ballot),
		options:       make(map[int64]*Option),
		votes:         make(map[Vote]struct{}),
		fail:          make(map[string]error),
	}
}

func (m *memStore) write(op string) error {
	if err := m.fail[op]; err != nil {
		return err
	}
	m.writes++
	return nil
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memStore) UserExists(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[userID]
	return ok, nil
}

func (m *memStore) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("CreateUser"); err != nil {
		return err
	}
	if _, ok := m.users[u.ID]; ok {
		return fmt.Errorf("duplicate user %d", u.ID)
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *memStore) GetGroup(_ context.Context, groupID int64) (*Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return nil, nil
	}
	c := *g
	return &c, nil
}

func (m *memStore) ListGroups(_ context.Context) ([]*Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Group
	for _, g := range m.groups {
		c := *g
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateGroup(_ context.Context, g *Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("CreateGroup"); err != nil {
		return err
	}
	if _, ok := m.users[g.AdminID]; !ok {
		return fmt.Errorf("foreign key: admin %d", g.AdminID)
	}
	c := *g
	m.groups[g.ID] = &c
	return nil
}

func (m *memStore) UpdateGroup(_ context.Context, g *Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateGroup"); err != nil {
		return err
	}
	c := *g
	m.groups[g.ID] = &c
	return nil
}

func (m *memStore) MarkGroupDeleted(_ context.Context, groupID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("MarkGroupDeleted"); err != nil {
		return err
	}
	if g, ok := m.groups[groupID]; ok {
		g.Deleted = true
	}
	return nil
}

func (m *memStore) SetNotificationSetting(_ context.Context, groupID int64, setting NotificationSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("SetNotificationSetting"); err != nil {
		return err
	}
	if g, ok := m.groups[groupID]; ok {
		g.NotificationSetting = setting
	}
	return nil
}

func (m *memStore) DeleteGroup(_ context.Context, groupID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("DeleteGroup"); err != nil {
		return err
	}
	for _, c := range m.conversations {
		if c.GroupID != groupID {
			continue
		}
		for _, msg := range m.messages {
			if msg.ConversationID == c.ID {
				return fmt.Errorf("foreign key: conversation %d still has messages", c.ID)
			}
		}
	}
	for id, c := range m.conversations {
		if c.GroupID == groupID {
			delete(m.conversations, id)
		}
	}
	for id, b := range m.ballots {
		if b.GroupID == groupID {
			m.deleteBallotLocked(id)
		}
	}
	for k := range m.participants {
		if k[0] == groupID {
			delete(m.participants, k)
		}
	}
	delete(m.groups, groupID)
	return nil
}

func (m *memStore) ListParticipants(_ context.Context, groupID int64) ([]*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Participant
	for k, p := range m.participants {
		if k[0] == groupID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memStore) GetParticipant(_ context.Context, groupID, userID int64) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[[2]int64{groupID, userID}]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (m *memStore) CreateParticipants(_ context.Context, ps []*Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("CreateParticipants"); err != nil {
		return err
	}
	for _, p := range ps {
		key := [2]int64{p.GroupID, p.UserID}
		if _, ok := m.participants[key]; ok {
			return fmt.Errorf("duplicate participant %v", key)
		}
		if _, ok := m.users[p.UserID]; !ok {
			return fmt.Errorf("foreign key: user %d", p.UserID)
		}
		c := *p
		m.participants[key] = &c
	}
	return nil
}

func (m *memStore) SetParticipantActive(_ context.Context, groupID, userID int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("SetParticipantActive"); err != nil {
		return err
	}
	if p, ok := m.participants[[2]int64{groupID, userID}]; ok {
		p.Active = active
	}
	return nil
}

func (m *memStore) GetConversation(_ context.Context, conversationID int64) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListConversations(_ context.Context, groupID int64) ([]*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Conversation
	for _, c := range m.conversations {
		if c.GroupID == groupID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateConversations(_ context.Context, cs []*Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("CreateConversations"); err != nil {
		return err
	}
	for _, c := range cs {
		cp := *c
		cp.Messages = nil
		m.conversations[c.ID] = &cp
	}
	return nil
}

func (m *memStore) UpdateConversations(_ context.Context, cs []*Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateConversations"); err != nil {
		return err
	}
	for _, c := range cs {
		if stored, ok := m.conversations[c.ID]; ok {
			stored.Title = c.Title
			stored.AdminID = c.AdminID
			stored.Closed = c.Closed
		}
	}
	return nil
}

func (m *memStore) MarkConversationsClosed(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("MarkConversationsClosed"); err != nil {
		return err
	}
	for _, id := range ids {
		if c, ok := m.conversations[id]; ok {
			c.Closed = true
		}
	}
	return nil
}

func (m *memStore) MaxMessageNumber(_ context.Context, conversationID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	highest := 0
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.Number > highest {
			highest = msg.Number
		}
	}
	return highest, nil
}

func (m *memStore) ListMessages(_ context.Context, conversationID int64) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			c := *msg
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memStore) CreateMessages(_ context.Context, ms []*Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("CreateMessages"); err != nil {
		return err
	}
	for _, msg := range ms {
		c := *msg
		if c.ID == 0 {
			m.nextMessageID++
			c.ID = 1000 + m.nextMessageID
		}
		m.messages = append(m.messages, &c)
	}
	return nil
}

func (m *memStore) ListMessagesPendingAuthor(_ context.Context, groupID int64) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Message
	for _, msg := range m.messages {
		c, ok := m.conversations[msg.ConversationID]
		if !ok || c.GroupID != groupID {
			continue
		}
		if msg.AuthorID == UnknownAuthor && msg.PendingAuthorID != 0 {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) SetMessageAuthor(_ context.Context, messageID, authorID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("SetMessageAuthor"); err != nil {
		return err
	}
	for _, msg := range m.messages {
		if msg.ID == messageID {
			msg.AuthorID = authorID
			msg.PendingAuthorID = 0
		}
	}
	return nil
}

func (m *memStore) DeleteMessagesOfConversation(_ context.Context, conversationID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("DeleteMessagesOfConversation"); err != nil {
		return err
	}
	m.messages = slices.DeleteFunc(m.messages, func(msg *Message) bool {
		return msg.ConversationID == conversationID
	})
	return nil
}

func (m *memStore) GetBallot(_ context.Context, ballotID int64) (*Ballot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.ballots[ballotID]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (m *memStore) ListBallots(_ context.Context, groupID int64) ([]*Ballot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Ballot
	for _, b := range m.ballots {
		if b.GroupID == groupID {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateBallot(_ context.Context, b *Ballot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("CreateBallot"); err != nil {
		return err
	}
	c := *b
	c.Options = nil
	m.ballots[b.ID] = &c
	for _, o := range b.Options {
		m.options[o.ID] = &Option{ID: o.ID, BallotID: b.ID, Text: o.Text}
		for _, v := range o.VoterIDs {
			m.votes[Vote{OptionID: o.ID, UserID: v}] = struct{}{}
		}
	}
	return nil
}

func (m *memStore) UpdateBallot(_ context.Context, b *Ballot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateBallot"); err != nil {
		return err
	}
	c := *b
	c.Options = nil
	m.ballots[b.ID] = &c
	return nil
}

func (m *memStore) DeleteBallot(_ context.Context, ballotID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("DeleteBallot"); err != nil {
		return err
	}
	m.deleteBallotLocked(ballotID)
	return nil
}

func (m *memStore) deleteBallotLocked(ballotID int64) {
	for id, o := range m.options {
		if o.BallotID == ballotID {
			m.deleteOptionLocked(id)
		}
	}
	delete(m.ballots, ballotID)
}

func (m *memStore) ListOptions(_ context.Context, ballotID int64) ([]*Option, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Option
	for _, o := range m.options {
		if o.BallotID == ballotID {
			c := *o
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateOption(_ context.Context, o *Option) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("CreateOption"); err != nil {
		return err
	}
	m.options[o.ID] = &Option{ID: o.ID, BallotID: o.BallotID, Text: o.Text}
	return nil
}

func (m *memStore) UpdateOptionText(_ context.Context, optionID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateOptionText"); err != nil {
		return err
	}
	if o, ok := m.options[optionID]; ok {
		o.Text = text
	}
	return nil
}

func (m *memStore) DeleteOption(_ context.Context, optionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("DeleteOption"); err != nil {
		return err
	}
	m.deleteOptionLocked(optionID)
	return nil
}

func (m *memStore) deleteOptionLocked(optionID int64) {
	for v := range m.votes {
		if v.OptionID == optionID {
			delete(m.votes, v)
		}
	}
	delete(m.options, optionID)
}

func (m *memStore) ListVoters(_ context.Context, optionID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for v := range m.votes {
		if v.OptionID == optionID {
			out = append(out, v.UserID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *memStore) HasVote(_ context.Context, optionID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.votes[Vote{OptionID: optionID, UserID: userID}]
	return ok, nil
}

func (m *memStore) ListUserVotes(_ context.Context, ballotID, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for v := range m.votes {
		if v.UserID != userID {
			continue
		}
		if o, ok := m.options[v.OptionID]; ok && o.BallotID == ballotID {
			out = append(out, v.OptionID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *memStore) CreateVote(_ context.Context, v Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("CreateVote"); err != nil {
		return err
	}
	m.votes[v] = struct{}{}
	return nil
}

func (m *memStore) DeleteVote(_ context.Context, v Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("DeleteVote"); err != nil {
		return err
	}
	delete(m.votes, v)
	return nil
}

// snapshot renders the whole store deterministically for equality checks.
func (m *memStore) snapshot() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lines []string
	for _, u := range m.users {
		lines = append(lines, fmt.Sprintf("user %+v", *u))
	}
	for _, g := range m.groups {
		lines = append(lines, fmt.Sprintf("group %+v", *g))
	}
	for _, p := range m.participants {
		lines = append(lines, fmt.Sprintf("participant %+v", *p))
	}
	for _, c := range m.conversations {
		lines = append(lines, fmt.Sprintf("conversation %d %d %d %q %v", c.ID, c.GroupID, c.AdminID, c.Title, c.Closed))
	}
	for _, msg := range m.messages {
		lines = append(lines, fmt.Sprintf("message %+v", *msg))
	}
	for _, b := range m.ballots {
		lines = append(lines, fmt.Sprintf("ballot %+v", *b))
	}
	for _, o := range m.options {
		lines = append(lines, fmt.Sprintf("option %+v", *o))
	}
	for v := range m.votes {
		lines = append(lines, fmt.Sprintf("vote %+v", v))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func (m *memStore) addUser(ids ...int64) {
	for _, id := range ids {
		m.users[id] = &User{ID: id, Name: fmt.Sprintf("user%d", id)}
	}
}

func (m *memStore) addParticipant(groupID, userID int64, active bool) {
	m.addUser(userID)
	m.participants[[2]int64{groupID, userID}] = &Participant{GroupID: groupID, UserID: userID, Active: active}
}

func (m *memStore) userVotes(ballotID, userID int64) []int64 {
	ids, _ := m.ListUserVotes(context.Background(), ballotID, userID)
	return ids
}

// fakeGateway is an in-memory server. Methods return copies and record their
// names in calls.
type fakeGateway struct {
	mu            sync.Mutex
	groups        map[int64]*Group
	participants  map[int64][]*RemoteParticipant
	conversations map[int64][]*Conversation
	ballots       map[int64][]*Ballot
	nextID        int64
	calls         []string
	fail          map[string]error
	failOption    map[string]error
	// numberSkew is added to the number of every created message to mimic
	// messages posted by others in between.
	numberSkew int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		groups:        make(map[int64]*Group),
		participants:  make(map[int64][]*RemoteParticipant),
		conversations: make(map[int64][]*Conversation),
		ballots:       make(map[int64][]*Ballot),
		nextID:        500,
		fail:          make(map[string]error),
		failOption:    make(map[string]error),
	}
}

func notFound(resource string) error {
	return NewRemoteError(resource, 404, ErrNotFound, nil)
}

func (f *fakeGateway) call(name string) error {
	f.calls = append(f.calls, name)
	return f.fail[name]
}

func (f *fakeGateway) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeGateway) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeGateway) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeGateway) addParticipant(groupID, userID int64, active bool) {
	for _, p := range f.participants[groupID] {
		if p.User.ID == userID {
			p.Active = active
			return
		}
	}
	f.participants[groupID] = append(f.participants[groupID], &RemoteParticipant{
		User:   User{ID: userID, Name: fmt.Sprintf("user%d", userID)},
		Active: active,
	})
}

func (f *fakeGateway) ballot(groupID, ballotID int64) *Ballot {
	for _, b := range f.ballots[groupID] {
		if b.ID == ballotID {
			return b
		}
	}
	return nil
}

func (f *fakeGateway) conversation(groupID, conversationID int64) *Conversation {
	for _, c := range f.conversations[groupID] {
		if c.ID == conversationID {
			return c
		}
	}
	return nil
}

func cloneConversation(c *Conversation) *Conversation {
	cp := *c
	cp.Messages = nil
	for _, m := range c.Messages {
		mc := *m
		cp.Messages = append(cp.Messages, &mc)
	}
	return &cp
}

func cloneBallot(b *Ballot) *Ballot {
	cp := *b
	cp.Options = nil
	for _, o := range b.Options {
		oc := *o
		oc.VoterIDs = slices.Clone(o.VoterIDs)
		cp.Options = append(cp.Options, &oc)
	}
	return &cp
}

func (f *fakeGateway) ListGroups(_ context.Context) ([]*Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ListGroups"); err != nil {
		return nil, err
	}
	var out []*Group
	for _, g := range f.groups {
		c := *g
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeGateway) FetchGroup(_ context.Context, groupID int64) (*Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("FetchGroup"); err != nil {
		return nil, err
	}
	g, ok := f.groups[groupID]
	if !ok {
		return nil, notFound("group")
	}
	c := *g
	return &c, nil
}

func (f *fakeGateway) CreateGroup(_ context.Context, g *Group) (*Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateGroup"); err != nil {
		return nil, err
	}
	c := *g
	c.ID = f.id()
	f.groups[c.ID] = &c
	f.addParticipant(c.ID, c.AdminID, true)
	out := c
	return &out, nil
}

func (f *fakeGateway) UpdateGroup(_ context.Context, groupID int64, delta GroupDelta) (*Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("UpdateGroup"); err != nil {
		return nil, err
	}
	g, ok := f.groups[groupID]
	if !ok {
		return nil, notFound("group")
	}
	delta.Apply(g)
	c := *g
	return &c, nil
}

func (f *fakeGateway) DeleteGroup(_ context.Context, groupID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteGroup"); err != nil {
		return err
	}
	if _, ok := f.groups[groupID]; !ok {
		return notFound("group")
	}
	delete(f.groups, groupID)
	return nil
}

func (f *fakeGateway) JoinGroup(ctx context.Context, groupID int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("JoinGroup"); err != nil {
		return err
	}
	if _, ok := f.groups[groupID]; !ok {
		return notFound("group")
	}
	me, _ := session.UserID(ctx)
	f.addParticipant(groupID, me, true)
	return nil
}

func (f *fakeGateway) FetchParticipants(_ context.Context, groupID int64) ([]*RemoteParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("FetchParticipants"); err != nil {
		return nil, err
	}
	if _, ok := f.groups[groupID]; !ok {
		return nil, notFound("group")
	}
	var out []*RemoteParticipant
	for _, p := range f.participants[groupID] {
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeGateway) RemoveParticipant(_ context.Context, groupID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("RemoveParticipant"); err != nil {
		return err
	}
	for _, p := range f.participants[groupID] {
		if p.User.ID == userID {
			p.Active = false
			return nil
		}
	}
	return notFound("participant")
}

func (f *fakeGateway) FetchConversations(_ context.Context, groupID int64) ([]*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("FetchConversations"); err != nil {
		return nil, err
	}
	if _, ok := f.groups[groupID]; !ok {
		return nil, notFound("group")
	}
	var out []*Conversation
	for _, c := range f.conversations[groupID] {
		out = append(out, cloneConversation(c))
	}
	return out, nil
}

func (f *fakeGateway) FetchConversation(_ context.Context, groupID, conversationID int64) (*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("FetchConversation"); err != nil {
		return nil, err
	}
	c := f.conversation(groupID, conversationID)
	if c == nil {
		return nil, notFound("conversation")
	}
	return cloneConversation(c), nil
}

func (f *fakeGateway) CreateConversation(_ context.Context, groupID int64, c *Conversation) (*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateConversation"); err != nil {
		return nil, err
	}
	cp := cloneConversation(c)
	cp.ID = f.id()
	cp.GroupID = groupID
	f.conversations[groupID] = append(f.conversations[groupID], cp)
	return cloneConversation(cp), nil
}

func (f *fakeGateway) CloseConversation(_ context.Context, groupID, conversationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CloseConversation"); err != nil {
		return err
	}
	c := f.conversation(groupID, conversationID)
	if c == nil {
		return notFound("conversation")
	}
	c.Closed = true
	return nil
}

func (f *fakeGateway) FetchMessages(_ context.Context, groupID, conversationID int64, afterNumber int) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("FetchMessages"); err != nil {
		return nil, err
	}
	c := f.conversation(groupID, conversationID)
	if c == nil {
		return nil, notFound("conversation")
	}
	var out []*Message
	for _, m := range c.Messages {
		if m.Number > afterNumber {
			mc := *m
			out = append(out, &mc)
		}
	}
	return out, nil
}

func (f *fakeGateway) CreateMessage(_ context.Context, groupID, conversationID int64, m *Message) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateMessage"); err != nil {
		return nil, err
	}
	c := f.conversation(groupID, conversationID)
	if c == nil {
		return nil, notFound("conversation")
	}
	highest := 0
	for _, existing := range c.Messages {
		highest = max(highest, existing.Number)
	}
	for i := 0; i < f.numberSkew; i++ {
		highest++
		c.Messages = append(c.Messages, &Message{ID: f.id(), ConversationID: conversationID, AuthorID: 99, Number: highest, Text: "meanwhile"})
	}
	mc := *m
	mc.ID = f.id()
	mc.Number = highest + 1
	c.Messages = append(c.Messages, &mc)
	out := mc
	return &out, nil
}

func (f *fakeGateway) FetchBallots(_ context.Context, groupID int64) ([]*Ballot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("FetchBallots"); err != nil {
		return nil, err
	}
	if _, ok := f.groups[groupID]; !ok {
		return nil, notFound("group")
	}
	var out []*Ballot
	for _, b := range f.ballots[groupID] {
		out = append(out, cloneBallot(b))
	}
	return out, nil
}

func (f *fakeGateway) FetchBallot(_ context.Context, groupID, ballotID int64) (*Ballot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("FetchBallot"); err != nil {
		return nil, err
	}
	b := f.ballot(groupID, ballotID)
	if b == nil {
		return nil, notFound("ballot")
	}
	return cloneBallot(b), nil
}

func (f *fakeGateway) CreateBallot(_ context.Context, groupID int64, b *Ballot) (*Ballot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateBallot"); err != nil {
		return nil, err
	}
	cp := cloneBallot(b)
	cp.ID = f.id()
	cp.GroupID = groupID
	for _, o := range cp.Options {
		o.ID = f.id()
		o.BallotID = cp.ID
	}
	f.ballots[groupID] = append(f.ballots[groupID], cp)
	return cloneBallot(cp), nil
}

func (f *fakeGateway) UpdateBallot(_ context.Context, groupID, ballotID int64, delta BallotDelta) (*Ballot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("UpdateBallot"); err != nil {
		return nil, err
	}
	b := f.ballot(groupID, ballotID)
	if b == nil {
		return nil, notFound("ballot")
	}
	delta.Apply(b)
	return cloneBallot(b), nil
}

func (f *fakeGateway) DeleteBallot(_ context.Context, groupID, ballotID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteBallot"); err != nil {
		return err
	}
	before := len(f.ballots[groupID])
	f.ballots[groupID] = slices.DeleteFunc(f.ballots[groupID], func(b *Ballot) bool { return b.ID == ballotID })
	if len(f.ballots[groupID]) == before {
		return notFound("ballot")
	}
	return nil
}

func (f *fakeGateway) CreateOption(_ context.Context, groupID, ballotID int64, o *Option) (*Option, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateOption"); err != nil {
		return nil, err
	}
	if err := f.failOption[o.Text]; err != nil {
		return nil, err
	}
	b := f.ballot(groupID, ballotID)
	if b == nil {
		return nil, notFound("ballot")
	}
	oc := &Option{ID: f.id(), BallotID: ballotID, Text: o.Text}
	b.Options = append(b.Options, oc)
	out := *oc
	return &out, nil
}

func (f *fakeGateway) DeleteOption(_ context.Context, groupID, ballotID, optionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteOption"); err != nil {
		return err
	}
	b := f.ballot(groupID, ballotID)
	if b == nil {
		return notFound("ballot")
	}
	for _, o := range b.Options {
		if o.ID == optionID {
			if err := f.failOption[o.Text]; err != nil {
				return err
			}
		}
	}
	before := len(b.Options)
	b.Options = slices.DeleteFunc(b.Options, func(o *Option) bool { return o.ID == optionID })
	if len(b.Options) == before {
		return notFound("option")
	}
	return nil
}

func (f *fakeGateway) option(groupID, ballotID, optionID int64) (*Option, error) {
	b := f.ballot(groupID, ballotID)
	if b == nil {
		return nil, notFound("ballot")
	}
	for _, o := range b.Options {
		if o.ID == optionID {
			return o, nil
		}
	}
	return nil, notFound("option")
}

func (f *fakeGateway) PlaceVote(ctx context.Context, groupID, ballotID, optionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("PlaceVote"); err != nil {
		return err
	}
	o, err := f.option(groupID, ballotID, optionID)
	if err != nil {
		return err
	}
	me, _ := session.UserID(ctx)
	if slices.Contains(o.VoterIDs, me) {
		return NewRemoteError("vote", 409, ErrAlreadyVoted, nil)
	}
	o.VoterIDs = append(o.VoterIDs, me)
	return nil
}

func (f *fakeGateway) RemoveVote(ctx context.Context, groupID, ballotID, optionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("RemoveVote"); err != nil {
		return err
	}
	o, err := f.option(groupID, ballotID, optionID)
	if err != nil {
		return err
	}
	me, _ := session.UserID(ctx)
	o.VoterIDs = slices.DeleteFunc(o.VoterIDs, func(id int64) bool { return id == me })
	return nil
}

var errBoom = errors.New("boom")

func ctxFor(userID int64) context.Context {
	return session.NewContext(context.Background(), session.Session{UserID: userID, UserName: fmt.Sprintf("user%d", userID), Token: "t"})
}

func newTestService(store *memStore, gw *fakeGateway) *Service {
	return NewService(store, gw, WithAdminPicker(FirstPicker{}), WithPasswordSalt("test-salt"))
}
