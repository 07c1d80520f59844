package remote

import (
	"time"

	"nuclight.org/groupsync/internal/groups"
)

// JSON shapes of the server API.

type userDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type groupDTO struct {
	ID           int64     `json:"id,omitempty"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Term         string    `json:"term"`
	AdminID      int64     `json:"admin_id"`
	PasswordHash string    `json:"password_hash,omitempty"`
	ModifiedAt   time.Time `json:"modified_at,omitzero"`
}

type groupPatchDTO struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	Term         *string `json:"term,omitempty"`
	PasswordHash *string `json:"password_hash,omitempty"`
	AdminID      *int64  `json:"admin_id,omitempty"`
}

type joinDTO struct {
	PasswordHash string `json:"password_hash"`
}

type participantDTO struct {
	User   userDTO `json:"user"`
	Active bool    `json:"active"`
}

type conversationDTO struct {
	ID       int64        `json:"id,omitempty"`
	AdminID  int64        `json:"admin_id"`
	Title    string       `json:"title"`
	Closed   bool         `json:"closed"`
	Messages []messageDTO `json:"messages,omitempty"`
}

type messageDTO struct {
	ID        int64     `json:"id,omitempty"`
	AuthorID  int64     `json:"author_id"`
	Number    int       `json:"number,omitempty"`
	Text      string    `json:"text"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type ballotDTO struct {
	ID             int64       `json:"id,omitempty"`
	AdminID        int64       `json:"admin_id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	MultipleChoice bool        `json:"multiple_choice"`
	Closed         bool        `json:"closed"`
	Options        []optionDTO `json:"options"`
}

type ballotPatchDTO struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Closed      *bool   `json:"closed,omitempty"`
}

type optionDTO struct {
	ID       int64   `json:"id,omitempty"`
	Text     string  `json:"text"`
	VoterIDs []int64 `json:"voter_ids,omitempty"`
}

type errorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (d groupDTO) toGroup() *groups.Group {
	return &groups.Group{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		Term:         d.Term,
		AdminID:      d.AdminID,
		PasswordHash: d.PasswordHash,
		ModifiedAt:   d.ModifiedAt,
	}
}

func fromGroup(g *groups.Group) groupDTO {
	return groupDTO{
		ID:           g.ID,
		Name:         g.Name,
		Description:  g.Description,
		Term:         g.Term,
		AdminID:      g.AdminID,
		PasswordHash: g.PasswordHash,
	}
}

func (d conversationDTO) toConversation(groupID int64) *groups.Conversation {
	c := &groups.Conversation{
		ID:      d.ID,
		GroupID: groupID,
		AdminID: d.AdminID,
		Title:   d.Title,
		Closed:  d.Closed,
	}
	for _, m := range d.Messages {
		c.Messages = append(c.Messages, m.toMessage(d.ID))
	}
	return c
}

func (d messageDTO) toMessage(conversationID int64) *groups.Message {
	priority := groups.PriorityNormal
	if d.Priority == "high" {
		priority = groups.PriorityHigh
	}
	return &groups.Message{
		ID:             d.ID,
		ConversationID: conversationID,
		AuthorID:       d.AuthorID,
		Number:         d.Number,
		Text:           d.Text,
		Priority:       priority,
		CreatedAt:      d.CreatedAt,
	}
}

func fromMessage(m *groups.Message) messageDTO {
	priority := "normal"
	if m.Priority == groups.PriorityHigh {
		priority = "high"
	}
	return messageDTO{AuthorID: m.AuthorID, Text: m.Text, Priority: priority}
}

func (d ballotDTO) toBallot(groupID int64) *groups.Ballot {
	b := &groups.Ballot{
		ID:             d.ID,
		GroupID:        groupID,
		AdminID:        d.AdminID,
		Title:          d.Title,
		Description:    d.Description,
		MultipleChoice: d.MultipleChoice,
		Closed:         d.Closed,
	}
	for _, o := range d.Options {
		b.Options = append(b.Options, o.toOption(d.ID))
	}
	return b
}

func fromBallot(b *groups.Ballot) ballotDTO {
	d := ballotDTO{
		AdminID:        b.AdminID,
		Title:          b.Title,
		Description:    b.Description,
		MultipleChoice: b.MultipleChoice,
		Closed:         b.Closed,
	}
	for _, o := range b.Options {
		d.Options = append(d.Options, optionDTO{Text: o.Text})
	}
	return d
}

func (d optionDTO) toOption(ballotID int64) *groups.Option {
	return &groups.Option{ID: d.ID, BallotID: ballotID, Text: d.Text, VoterIDs: d.VoterIDs}
}
