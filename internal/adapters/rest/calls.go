package rest

import (
	"context"
	"errors"
	"strconv"

	"github.com/dkeye/meetclient/internal/domain"
)

func callPath(id domain.CallID) string { return "/api/calls/" + seg(string(id)) }

func (c *Client) InitiateCall(ctx context.Context, callee domain.UserID, kind domain.CallKind) (*domain.Call, error) {
	var call domain.Call
	in := map[string]string{"callee_id": string(callee), "call_type": string(kind)}
	if err := c.post(ctx, "/api/calls", in, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

func (c *Client) AnswerCall(ctx context.Context, id domain.CallID) (*domain.Call, error) {
	var call domain.Call
	if err := c.post(ctx, callPath(id)+"/answer", nil, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

func (c *Client) RejectCall(ctx context.Context, id domain.CallID, reason string) error {
	return c.post(ctx, callPath(id)+"/reject", map[string]string{"reason": reason}, nil)
}

func (c *Client) CancelCall(ctx context.Context, id domain.CallID) error {
	return c.post(ctx, callPath(id)+"/cancel", nil, nil)
}

func (c *Client) EndCall(ctx context.Context, id domain.CallID) error {
	return c.post(ctx, callPath(id)+"/end", nil, nil)
}

// ActiveCall returns nil without error when the user has no call.
func (c *Client) ActiveCall(ctx context.Context) (*domain.Call, error) {
	var call domain.Call
	err := c.get(ctx, "/api/calls/active", &call)
	if errors.Is(err, ErrNotFound) || (err == nil && call.ID == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

func (c *Client) CallHistory(ctx context.Context, limit int) ([]domain.Call, error) {
	path := "/api/calls/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []domain.Call
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}
