package client

import (
	"context"
)

// Client is the remote memo service.
type Client interface {
	Close() error
	Ping(ctx context.Context) error

	ListMemos(ctx context.Context, req ListMemosRequest) (*ListMemosResponse, error)
	GetMemo(ctx context.Context, name string) (*Memo, error)
	CreateMemo(ctx context.Context, req CreateMemoRequest) (*Memo, error)
	UpdateMemo(ctx context.Context, name string, req UpdateMemoRequest) (*Memo, error)
	DeleteMemo(ctx context.Context, name string) error

	ListResources(ctx context.Context) ([]Resource, error)
	CreateResource(ctx context.Context, req CreateResourceRequest) (*Resource, error)
	DeleteResource(ctx context.Context, name string) error

	GetUser(ctx context.Context, name string) (*User, error)
	CurrentUser(ctx context.Context) (*User, error)
	GetUserStats(ctx context.Context, name string) (*UserStats, error)

	CreateGroup(ctx context.Context, req GroupRequest) (*Group, error)
	JoinGroup(ctx context.Context, inviteCode string) (*Group, error)
	UpdateGroup(ctx context.Context, name string, req GroupRequest) (*Group, error)
	DeleteOrLeaveGroup(ctx context.Context, name string) error
	AddGroupTag(ctx context.Context, name, tag string) (*Group, error)
	CreateGroupMemo(ctx context.Context, name, content string) (*Memo, error)
	ListGroupMemos(ctx context.Context, name string) ([]Memo, error)
}
