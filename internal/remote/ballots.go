package remote

import (
	"context"
	"fmt"
	"net/http"

	"nuclight.org/groupsync/internal/groups"
)

func (c *Client) FetchBallots(ctx context.Context, groupID int64) ([]*groups.Ballot, error) {
	var dtos []ballotDTO
	if err := c.do(ctx, http.MethodGet, groupPath(groupID)+"/ballots", "ballots", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]*groups.Ballot, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toBallot(groupID))
	}
	return out, nil
}

func (c *Client) FetchBallot(ctx context.Context, groupID, ballotID int64) (*groups.Ballot, error) {
	var d ballotDTO
	if err := c.do(ctx, http.MethodGet, ballotPath(groupID, ballotID), "ballot", nil, &d); err != nil {
		return nil, err
	}
	return d.toBallot(groupID), nil
}

func (c *Client) CreateBallot(ctx context.Context, groupID int64, b *groups.Ballot) (*groups.Ballot, error) {
	var d ballotDTO
	if err := c.do(ctx, http.MethodPost, groupPath(groupID)+"/ballots", "ballot", fromBallot(b), &d); err != nil {
		return nil, err
	}
	return d.toBallot(groupID), nil
}

func (c *Client) UpdateBallot(ctx context.Context, groupID, ballotID int64, delta groups.BallotDelta) (*groups.Ballot, error) {
	patch := ballotPatchDTO{Title: delta.Title, Description: delta.Description, Closed: delta.Closed}
	var d ballotDTO
	if err := c.do(ctx, http.MethodPatch, ballotPath(groupID, ballotID), "ballot", patch, &d); err != nil {
		return nil, err
	}
	return d.toBallot(groupID), nil
}

func (c *Client) DeleteBallot(ctx context.Context, groupID, ballotID int64) error {
	return c.do(ctx, http.MethodDelete, ballotPath(groupID, ballotID), "ballot", nil, nil)
}

func (c *Client) CreateOption(ctx context.Context, groupID, ballotID int64, o *groups.Option) (*groups.Option, error) {
	var d optionDTO
	path := ballotPath(groupID, ballotID) + "/options"
	if err := c.do(ctx, http.MethodPost, path, "option", optionDTO{Text: o.Text}, &d); err != nil {
		return nil, err
	}
	return d.toOption(ballotID), nil
}

func (c *Client) DeleteOption(ctx context.Context, groupID, ballotID, optionID int64) error {
	return c.do(ctx, http.MethodDelete, optionPath(groupID, ballotID, optionID), "option", nil, nil)
}

func (c *Client) PlaceVote(ctx context.Context, groupID, ballotID, optionID int64) error {
	return c.do(ctx, http.MethodPut, optionPath(groupID, ballotID, optionID)+"/vote", "vote", nil, nil)
}

func (c *Client) RemoveVote(ctx context.Context, groupID, ballotID, optionID int64) error {
	return c.do(ctx, http.MethodDelete, optionPath(groupID, ballotID, optionID)+"/vote", "vote", nil, nil)
}

func optionPath(groupID, ballotID, optionID int64) string {
	return fmt.Sprintf("%s/options/%d", ballotPath(groupID, ballotID), optionID)
}
