package client

import (
	"context"
	"net/http"
)

func (c *HTTPClient) CreateGroup(ctx context.Context, req GroupRequest) (*Group, error) {
	var g Group
	if err := c.do(ctx, http.MethodPost, "/api/v1/groups", nil, nil, req, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) JoinGroup(ctx context.Context, inviteCode string) (*Group, error) {
	body := struct {
		InviteCode string `json:"inviteCode"`
	}{inviteCode}

	var g Group
	if err := c.do(ctx, http.MethodPost, "/api/v1/groups:join", nil, nil, body, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) UpdateGroup(ctx context.Context, name string, req GroupRequest) (*Group, error) {
	var g Group
	if err := c.do(ctx, http.MethodPatch, "/api/v1/"+name, nil, nil, req, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteOrLeaveGroup deletes the group when the caller owns it and leaves it
// otherwise; the server decides.
func (c *HTTPClient) DeleteOrLeaveGroup(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/"+name, nil, nil, nil, nil)
}

func (c *HTTPClient) AddGroupTag(ctx context.Context, name, tag string) (*Group, error) {
	body := struct {
		Tag string `json:"tag"`
	}{tag}

	var g Group
	if err := c.do(ctx, http.MethodPost, "/api/v1/"+name+"/tags", nil, nil, body, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) CreateGroupMemo(ctx context.Context, name, content string) (*Memo, error) {
	body := struct {
		Content string `json:"content"`
	}{content}

	var m Memo
	if err := c.do(ctx, http.MethodPost, "/api/v1/"+name+"/memos", nil, nil, body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *HTTPClient) ListGroupMemos(ctx context.Context, name string) ([]Memo, error) {
	var resp struct {
		Memos []Memo `json:"memos"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/"+name+"/memos", nil, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Memos, nil
}
