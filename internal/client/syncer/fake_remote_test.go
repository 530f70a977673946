package syncer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/client"
)

// fakeRemote is an in-memory memo server. Unimplemented Client methods panic
// through the embedded nil interface.
type fakeRemote struct {
	client.Client

	mu        sync.Mutex
	clock     time.Time
	nextID    int
	memos     map[string]*client.Memo
	resources map[string]client.Resource
	groups    map[string]*client.Group
	groupMemo map[string][]client.Memo
	calls     []string

	// Injected failures, consumed in order per method.
	errs map[string][]error

	// created records CreateMemo requests.
	created []client.CreateMemoRequest
	updated []client.UpdateMemoRequest
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		memos:     make(map[string]*client.Memo),
		resources: make(map[string]client.Resource),
		groups:    make(map[string]*client.Group),
		groupMemo: make(map[string][]client.Memo),
		errs:      make(map[string][]error),
	}
}

func (f *fakeRemote) failNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = append(f.errs[method], errs...)
}

// enter records the call and pops an injected error. Callers hold no lock.
func (f *fakeRemote) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if q := f.errs[method]; len(q) > 0 {
		f.errs[method] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeRemote) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeRemote) id(prefix string) string {
	f.nextID++
	return prefix + "/" + strconv.Itoa(f.nextID)
}

// put stores a memo as if another device had written it.
func (f *fakeRemote) put(m client.Memo) *client.Memo {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.Name == "" {
		m.Name = f.id("memos")
	}
	if m.State == "" {
		m.State = client.StateNormal
	}
	if m.UpdateTime.IsZero() {
		m.UpdateTime = f.tick()
	}
	f.memos[m.Name] = &m
	return &m
}

func (f *fakeRemote) get(name string) (client.Memo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memos[name]
	if !ok {
		return client.Memo{}, false
	}
	return *m, true
}

func (f *fakeRemote) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) Ping(ctx context.Context) error {
	return f.enter("Ping")
}

func (f *fakeRemote) ListMemos(ctx context.Context, req client.ListMemosRequest) (*client.ListMemosResponse, error) {
	if err := f.enter("ListMemos"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var names []string
	for name, m := range f.memos {
		if req.State == "" || m.State == req.State {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	start := 0
	if req.PageToken != "" {
		start, _ = strconv.Atoi(req.PageToken)
	}
	size := req.PageSize
	if size <= 0 {
		size = len(names)
	}
	end := min(start+size, len(names))

	resp := &client.ListMemosResponse{}
	for _, name := range names[start:end] {
		resp.Memos = append(resp.Memos, *f.memos[name])
	}
	if end < len(names) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	return resp, nil
}

func (f *fakeRemote) GetMemo(ctx context.Context, name string) (*client.Memo, error) {
	if err := f.enter("GetMemo"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memos[name]
	if !ok {
		return nil, client.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeRemote) CreateMemo(ctx context.Context, req client.CreateMemoRequest) (*client.Memo, error) {
	if err := f.enter("CreateMemo"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created = append(f.created, req)
	m := &client.Memo{
		Name:       f.id("memos"),
		State:      client.StateNormal,
		Content:    req.Content,
		Visibility: req.Visibility,
		Pinned:     req.Pinned,
		Tags:       req.Tags,
		Resources:  req.Resources,
		Location:   req.Location,
		UpdateTime: f.tick(),
	}
	if req.State != "" {
		m.State = req.State
	}
	if req.CreateTime != nil {
		m.CreateTime = *req.CreateTime
	}
	f.memos[m.Name] = m
	cp := *m
	return &cp, nil
}

func (f *fakeRemote) UpdateMemo(ctx context.Context, name string, req client.UpdateMemoRequest) (*client.Memo, error) {
	if err := f.enter("UpdateMemo"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updated = append(f.updated, req)
	m, ok := f.memos[name]
	if !ok {
		return nil, client.ErrNotFound
	}
	if req.IfUnmodifiedSince != nil && m.UpdateTime.After(*req.IfUnmodifiedSince) {
		return nil, client.ErrConflict
	}
	if req.Content != nil {
		m.Content = *req.Content
	}
	if req.Visibility != nil {
		m.Visibility = *req.Visibility
	}
	if req.State != nil {
		m.State = *req.State
	}
	if req.Pinned != nil {
		m.Pinned = *req.Pinned
	}
	if req.Location != nil {
		m.Location = req.Location
	}
	if req.Resources != nil {
		m.Resources = req.Resources
	}
	m.UpdateTime = f.tick()
	cp := *m
	return &cp, nil
}

func (f *fakeRemote) DeleteMemo(ctx context.Context, name string) error {
	if err := f.enter("DeleteMemo"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.memos[name]; !ok {
		return client.ErrNotFound
	}
	delete(f.memos, name)
	return nil
}

func (f *fakeRemote) CreateResource(ctx context.Context, req client.CreateResourceRequest) (*client.Resource, error) {
	if err := f.enter("CreateResource"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := client.Resource{Name: f.id("resources"), Filename: req.Filename, Type: req.Type, Size: int64(len(req.Content))}
	f.resources[r.Name] = r
	return &r, nil
}

func (f *fakeRemote) CreateGroup(ctx context.Context, req client.GroupRequest) (*client.Group, error) {
	if err := f.enter("CreateGroup"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &client.Group{Name: f.id("groups"), DisplayName: req.DisplayName, Description: req.Description}
	f.groups[g.Name] = g
	cp := *g
	return &cp, nil
}

func (f *fakeRemote) JoinGroup(ctx context.Context, inviteCode string) (*client.Group, error) {
	if err := f.enter("JoinGroup"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &client.Group{Name: "groups/invite-" + inviteCode, DisplayName: "Joined " + inviteCode}
	f.groups[g.Name] = g
	cp := *g
	return &cp, nil
}

func (f *fakeRemote) UpdateGroup(ctx context.Context, name string, req client.GroupRequest) (*client.Group, error) {
	if err := f.enter("UpdateGroup:" + name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[name]
	if !ok {
		return nil, client.ErrNotFound
	}
	g.DisplayName = req.DisplayName
	cp := *g
	return &cp, nil
}

func (f *fakeRemote) AddGroupTag(ctx context.Context, name, tag string) (*client.Group, error) {
	if err := f.enter("AddGroupTag:" + name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[name]
	if !ok {
		return nil, client.ErrNotFound
	}
	g.Tags = append(g.Tags, tag)
	cp := *g
	return &cp, nil
}

func (f *fakeRemote) DeleteOrLeaveGroup(ctx context.Context, name string) error {
	if err := f.enter("DeleteOrLeaveGroup:" + name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups, name)
	return nil
}

func (f *fakeRemote) CreateGroupMemo(ctx context.Context, name, content string) (*client.Memo, error) {
	if err := f.enter("CreateGroupMemo:" + name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[name]; !ok {
		return nil, fmt.Errorf("group %s: %w", name, client.ErrNotFound)
	}
	m := client.Memo{Name: f.id("memos"), Content: content, UpdateTime: f.tick()}
	f.groupMemo[name] = append(f.groupMemo[name], m)
	return &m, nil
}

func (f *fakeRemote) ListGroupMemos(ctx context.Context, name string) ([]client.Memo, error) {
	if err := f.enter("ListGroupMemos"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.Memo(nil), f.groupMemo[name]...), nil
}

// addGroup registers a group that already exists on the server.
func (f *fakeRemote) addGroup(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[name] = &client.Group{Name: name, DisplayName: name}
}
