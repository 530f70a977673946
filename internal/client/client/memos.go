package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

func (c *HTTPClient) ListMemos(ctx context.Context, req ListMemosRequest) (*ListMemosResponse, error) {
	q := url.Values{}
	if req.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(req.PageSize))
	}
	if req.PageToken != "" {
		q.Set("pageToken", req.PageToken)
	}
	if req.State != "" {
		q.Set("state", req.State)
	}
	if req.Filter != "" {
		q.Set("filter", req.Filter)
	}

	var resp ListMemosResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/memos", q, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetMemo(ctx context.Context, name string) (*Memo, error) {
	var m Memo
	if err := c.do(ctx, http.MethodGet, "/api/v1/"+name, nil, nil, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *HTTPClient) CreateMemo(ctx context.Context, req CreateMemoRequest) (*Memo, error) {
	var m Memo
	if err := c.do(ctx, http.MethodPost, "/api/v1/memos", nil, nil, req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *HTTPClient) UpdateMemo(ctx context.Context, name string, req UpdateMemoRequest) (*Memo, error) {
	q := url.Values{}
	if mask := req.updateMask(); len(mask) > 0 {
		q.Set("updateMask", strings.Join(mask, ","))
	}

	var header http.Header
	if req.IfUnmodifiedSince != nil {
		header = http.Header{}
		header.Set("If-Unmodified-Since", req.IfUnmodifiedSince.UTC().Format(http.TimeFormat))
	}

	var m Memo
	if err := c.do(ctx, http.MethodPatch, "/api/v1/"+name, q, header, req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *HTTPClient) DeleteMemo(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/"+name, nil, nil, nil, nil)
}

func (c *HTTPClient) ListResources(ctx context.Context) ([]Resource, error) {
	var resp struct {
		Resources []Resource `json:"resources"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/resources", nil, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Resources, nil
}

func (c *HTTPClient) CreateResource(ctx context.Context, req CreateResourceRequest) (*Resource, error) {
	var r Resource
	if err := c.do(ctx, http.MethodPost, "/api/v1/resources", nil, nil, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) DeleteResource(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/"+name, nil, nil, nil, nil)
}

func (c *HTTPClient) GetUser(ctx context.Context, name string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/v1/"+name, nil, nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CurrentUser returns the user the access token belongs to.
func (c *HTTPClient) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/status", nil, nil, struct{}{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) GetUserStats(ctx context.Context, name string) (*UserStats, error) {
	var s UserStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/"+name+"/stats", nil, nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// AnchorFilter returns the list filter selecting memos updated at or after
// anchor, at second precision.
func AnchorFilter(anchor time.Time) string {
	return "update_time >= " + strconv.FormatInt(anchor.Unix(), 10)
}
