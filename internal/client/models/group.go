package models

import "time"

// OperationKind is the intent carried by a pending group operation.
type OperationKind string

const (
	OperationCreate        OperationKind = "CREATE"
	OperationJoin          OperationKind = "JOIN"
	OperationUpdate        OperationKind = "UPDATE"
	OperationDeleteOrLeave OperationKind = "DELETE_OR_LEAVE"
	OperationAddTag        OperationKind = "ADD_TAG"
)

// Group is a shared memo space the account belongs to.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// PendingGroupOperation is a group mutation not yet confirmed remotely.
// GroupID may be a locally minted id.
type PendingGroupOperation struct {
	OperationID string        `json:"operation_id"`
	GroupID     string        `json:"group_id"`
	Kind        OperationKind `json:"kind"`
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	Tag         string        `json:"tag,omitempty"`
	InviteCode  string        `json:"invite_code,omitempty"`
	EnqueuedAt  time.Time     `json:"enqueued_at"`
}

// PendingGroupMemo is a memo posted to a group while offline.
type PendingGroupMemo struct {
	GroupID   string    `json:"group_id"`
	MemoID    string    `json:"memo_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupIDAlias maps a locally minted group id to the server-assigned one.
type GroupIDAlias struct {
	LocalID   string    `json:"local_id"`
	RemoteID  string    `json:"remote_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
