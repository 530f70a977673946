package client

import (
	"strings"
	"time"
)

// Memo states on the server.
const (
	StateNormal   = "NORMAL"
	StateArchived = "ARCHIVED"
)

type Location struct {
	Placeholder string  `json:"placeholder,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Memo is the server representation. Name has the form "memos/<id>".
type Memo struct {
	Name        string     `json:"name"`
	State       string     `json:"state,omitempty"`
	Creator     string     `json:"creator,omitempty"`
	CreateTime  time.Time  `json:"createTime"`
	UpdateTime  time.Time  `json:"updateTime"`
	DisplayTime time.Time  `json:"displayTime"`
	Content     string     `json:"content"`
	Visibility  string     `json:"visibility,omitempty"`
	Pinned      bool       `json:"pinned"`
	Tags        []string   `json:"tags,omitempty"`
	Resources   []Resource `json:"resources,omitempty"`
	Location    *Location  `json:"location,omitempty"`
}

// Resource is an uploaded attachment. Name has the form "resources/<id>".
type Resource struct {
	Name         string    `json:"name"`
	CreateTime   time.Time `json:"createTime"`
	Filename     string    `json:"filename"`
	ExternalLink string    `json:"externalLink,omitempty"`
	Type         string    `json:"type,omitempty"`
	Size         int64     `json:"size,string,omitempty"`
	Memo         string    `json:"memo,omitempty"`
}

type ListMemosRequest struct {
	PageSize  int
	PageToken string
	State     string
	Filter    string
}

type ListMemosResponse struct {
	Memos         []Memo `json:"memos"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

type CreateMemoRequest struct {
	Content    string     `json:"content"`
	Visibility string     `json:"visibility,omitempty"`
	Pinned     bool       `json:"pinned,omitempty"`
	State      string     `json:"state,omitempty"`
	Resources  []Resource `json:"resources,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Location   *Location  `json:"location,omitempty"`
	CreateTime *time.Time `json:"createTime,omitempty"`
}

// UpdateMemoRequest is a partial update; nil fields are left untouched.
// When IfUnmodifiedSince is set the server answers with a conflict if the
// memo changed after that instant.
type UpdateMemoRequest struct {
	Content     *string    `json:"content,omitempty"`
	Visibility  *string    `json:"visibility,omitempty"`
	State       *string    `json:"state,omitempty"`
	Pinned      *bool      `json:"pinned,omitempty"`
	Location    *Location  `json:"location,omitempty"`
	Resources   []Resource `json:"resources,omitempty"`
	DisplayTime *time.Time `json:"displayTime,omitempty"`

	IfUnmodifiedSince *time.Time `json:"-"`
}

// updateMask lists the JSON names of the fields set on r.
func (r UpdateMemoRequest) updateMask() []string {
	var mask []string
	if r.Content != nil {
		mask = append(mask, "content")
	}
	if r.Visibility != nil {
		mask = append(mask, "visibility")
	}
	if r.State != nil {
		mask = append(mask, "state")
	}
	if r.Pinned != nil {
		mask = append(mask, "pinned")
	}
	if r.Location != nil {
		mask = append(mask, "location")
	}
	if r.Resources != nil {
		mask = append(mask, "resources")
	}
	if r.DisplayTime != nil {
		mask = append(mask, "display_time")
	}
	return mask
}

type CreateResourceRequest struct {
	Filename string `json:"filename"`
	Type     string `json:"type,omitempty"`
	Content  []byte `json:"content"`
	Memo     string `json:"memo,omitempty"`
}

type User struct {
	Name        string `json:"name"`
	Username    string `json:"username"`
	Role        string `json:"role,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// ID returns the numeric part of Name, e.g. "42" for "users/42".
func (u *User) ID() string {
	if i := strings.LastIndex(u.Name, "/"); i >= 0 {
		return u.Name[i+1:]
	}
	return u.Name
}

type UserStats struct {
	Name      string         `json:"name"`
	MemoCount int            `json:"totalMemoCount"`
	TagCount  map[string]int `json:"tagCount,omitempty"`
}

// Group is a shared memo space. Name has the form "groups/<id>".
type Group struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	InviteCode  string    `json:"inviteCode,omitempty"`
	CreateTime  time.Time `json:"createTime"`
}

type GroupRequest struct {
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
}
