package syncer

import (
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/google/uuid"
)

func toRemoteLocation(p *models.GeoPoint) *client.Location {
	if p == nil {
		return nil
	}
	return &client.Location{Latitude: p.Latitude, Longitude: p.Longitude}
}

func fromRemoteLocation(l *client.Location) *models.GeoPoint {
	if l == nil {
		return nil
	}
	return &models.GeoPoint{Latitude: l.Latitude, Longitude: l.Longitude}
}

func remoteState(archived bool) string {
	if archived {
		return client.StateArchived
	}
	return client.StateNormal
}

func resourceRefs(res []models.Resource) []client.Resource {
	refs := make([]client.Resource, 0, len(res))
	for _, r := range res {
		if r.RemoteID != "" {
			refs = append(refs, client.Resource{Name: r.RemoteID})
		}
	}
	return refs
}

func createRequest(m *models.Memo) client.CreateMemoRequest {
	req := client.CreateMemoRequest{
		Content:    m.Content,
		Visibility: string(m.Visibility),
		Pinned:     m.Pinned,
		Resources:  resourceRefs(m.Resources),
		Tags:       m.Tags,
		Location:   toRemoteLocation(m.Location),
	}
	if m.Archived {
		req.State = client.StateArchived
	}
	if !m.Date.IsZero() {
		date := m.Date
		req.CreateTime = &date
	}
	return req
}

func updateRequest(m *models.Memo) client.UpdateMemoRequest {
	content := m.Content
	visibility := string(m.Visibility)
	state := remoteState(m.Archived)
	pinned := m.Pinned

	req := client.UpdateMemoRequest{
		Content:    &content,
		Visibility: &visibility,
		State:      &state,
		Pinned:     &pinned,
		Location:   toRemoteLocation(m.Location),
		Resources:  resourceRefs(m.Resources),
	}
	if m.LastSyncedAt != nil {
		since := *m.LastSyncedAt
		req.IfUnmodifiedSince = &since
	}
	return req
}

// localOnlyRequest carries the fields that survive a conflict.
func localOnlyRequest(m *models.Memo) client.UpdateMemoRequest {
	state := remoteState(m.Archived)
	pinned := m.Pinned
	return client.UpdateMemoRequest{
		State:    &state,
		Pinned:   &pinned,
		Location: toRemoteLocation(m.Location),
	}
}

func resourceURI(r *client.Resource) string {
	if r.ExternalLink != "" {
		return r.ExternalLink
	}
	if r.Name == "" {
		return ""
	}
	return "/file/" + r.Name + "/" + r.Filename
}

// applyRemote overwrites the synced fields of local with rm. The local
// identifier and local file paths of known attachments are kept.
func applyRemote(local *models.Memo, rm *client.Memo, accountKey string) {
	local.AccountKey = accountKey
	local.RemoteID = rm.Name
	local.Content = rm.Content
	local.Visibility = models.ParseVisibility(rm.Visibility)
	local.Pinned = rm.Pinned
	local.Archived = rm.State == client.StateArchived
	local.Location = fromRemoteLocation(rm.Location)
	local.Creator = rm.Creator
	local.Tags = rm.Tags

	switch {
	case !rm.DisplayTime.IsZero():
		local.Date = rm.DisplayTime
	case !rm.CreateTime.IsZero():
		local.Date = rm.CreateTime
	}
	if !rm.UpdateTime.IsZero() {
		local.LastModified = rm.UpdateTime
	}

	known := make(map[string]models.Resource, len(local.Resources))
	for _, r := range local.Resources {
		if r.RemoteID != "" {
			known[r.RemoteID] = r
		}
	}

	resources := make([]models.Resource, 0, len(rm.Resources))
	for i := range rm.Resources {
		rr := &rm.Resources[i]
		res, ok := known[rr.Name]
		if !ok {
			res = models.Resource{Identifier: uuid.NewString()}
		}
		res.RemoteID = rr.Name
		res.AccountKey = accountKey
		res.MemoID = local.Identifier
		res.Filename = rr.Filename
		res.URI = resourceURI(rr)
		res.MimeType = rr.Type
		res.Size = rr.Size
		if !rr.CreateTime.IsZero() {
			res.Date = rr.CreateTime
		} else if res.Date.IsZero() {
			res.Date = local.Date
		}
		resources = append(resources, res)
	}
	local.Resources = resources
}

// syncedAt prefers the server clock for the sync stamp so it compares
// against later remote update times.
func syncedAt(rm *client.Memo, now time.Time) time.Time {
	if !rm.UpdateTime.IsZero() {
		return rm.UpdateTime.UTC().Truncate(time.Millisecond)
	}
	return now.Truncate(time.Millisecond)
}
