package remote

import (
	"context"
	"fmt"
	"net/http"

	"nuclight.org/groupsync/internal/groups"
)

func (c *Client) ListGroups(ctx context.Context) ([]*groups.Group, error) {
	var dtos []groupDTO
	if err := c.do(ctx, http.MethodGet, "/groups", "groups", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]*groups.Group, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toGroup())
	}
	return out, nil
}

func (c *Client) FetchGroup(ctx context.Context, groupID int64) (*groups.Group, error) {
	var d groupDTO
	if err := c.do(ctx, http.MethodGet, groupPath(groupID), "group", nil, &d); err != nil {
		return nil, err
	}
	return d.toGroup(), nil
}

func (c *Client) CreateGroup(ctx context.Context, g *groups.Group) (*groups.Group, error) {
	var d groupDTO
	if err := c.do(ctx, http.MethodPost, "/groups", "group", fromGroup(g), &d); err != nil {
		return nil, err
	}
	return d.toGroup(), nil
}

func (c *Client) UpdateGroup(ctx context.Context, groupID int64, delta groups.GroupDelta) (*groups.Group, error) {
	patch := groupPatchDTO{
		Name:         delta.Name,
		Description:  delta.Description,
		Term:         delta.Term,
		PasswordHash: delta.PasswordHash,
		AdminID:      delta.AdminID,
	}
	var d groupDTO
	if err := c.do(ctx, http.MethodPatch, groupPath(groupID), "group", patch, &d); err != nil {
		return nil, err
	}
	return d.toGroup(), nil
}

func (c *Client) DeleteGroup(ctx context.Context, groupID int64) error {
	return c.do(ctx, http.MethodDelete, groupPath(groupID), "group", nil, nil)
}

func (c *Client) JoinGroup(ctx context.Context, groupID int64, passwordHash string) error {
	return c.do(ctx, http.MethodPost, groupPath(groupID)+"/join", "group", joinDTO{PasswordHash: passwordHash}, nil)
}

func (c *Client) FetchParticipants(ctx context.Context, groupID int64) ([]*groups.RemoteParticipant, error) {
	var dtos []participantDTO
	if err := c.do(ctx, http.MethodGet, groupPath(groupID)+"/participants", "participants", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]*groups.RemoteParticipant, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, &groups.RemoteParticipant{
			User:   groups.User{ID: d.User.ID, Name: d.User.Name},
			Active: d.Active,
		})
	}
	return out, nil
}

func (c *Client) RemoveParticipant(ctx context.Context, groupID, userID int64) error {
	path := fmt.Sprintf("%s/participants/%d", groupPath(groupID), userID)
	return c.do(ctx, http.MethodDelete, path, "participant", nil, nil)
}
