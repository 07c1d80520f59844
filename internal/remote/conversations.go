package remote

import (
	"context"
	"fmt"
	"net/http"

	"nuclight.org/groupsync/internal/groups"
)

func (c *Client) FetchConversations(ctx context.Context, groupID int64) ([]*groups.Conversation, error) {
	var dtos []conversationDTO
	if err := c.do(ctx, http.MethodGet, groupPath(groupID)+"/conversations", "conversations", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]*groups.Conversation, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toConversation(groupID))
	}
	return out, nil
}

func (c *Client) FetchConversation(ctx context.Context, groupID, conversationID int64) (*groups.Conversation, error) {
	var d conversationDTO
	if err := c.do(ctx, http.MethodGet, conversationPath(groupID, conversationID), "conversation", nil, &d); err != nil {
		return nil, err
	}
	return d.toConversation(groupID), nil
}

func (c *Client) CreateConversation(ctx context.Context, groupID int64, conv *groups.Conversation) (*groups.Conversation, error) {
	in := conversationDTO{AdminID: conv.AdminID, Title: conv.Title}
	var d conversationDTO
	if err := c.do(ctx, http.MethodPost, groupPath(groupID)+"/conversations", "conversation", in, &d); err != nil {
		return nil, err
	}
	return d.toConversation(groupID), nil
}

func (c *Client) CloseConversation(ctx context.Context, groupID, conversationID int64) error {
	return c.do(ctx, http.MethodPost, conversationPath(groupID, conversationID)+"/close", "conversation", nil, nil)
}

func (c *Client) FetchMessages(ctx context.Context, groupID, conversationID int64, afterNumber int) ([]*groups.Message, error) {
	path := fmt.Sprintf("%s/messages?after=%d", conversationPath(groupID, conversationID), afterNumber)
	var dtos []messageDTO
	if err := c.do(ctx, http.MethodGet, path, "messages", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]*groups.Message, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toMessage(conversationID))
	}
	return out, nil
}

func (c *Client) CreateMessage(ctx context.Context, groupID, conversationID int64, m *groups.Message) (*groups.Message, error) {
	var d messageDTO
	path := conversationPath(groupID, conversationID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, "message", fromMessage(m), &d); err != nil {
		return nil, err
	}
	return d.toMessage(conversationID), nil
}
