package tags

import "strings"

// CollaboratorPrefix marks a tag that carries a "shared-with" user reference.
const CollaboratorPrefix = "collab/"

// collaboratorID extracts the user id from a reference such as "users/42" or
// "alice": the last '/'-delimited segment, trimmed.
func collaboratorID(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, segmentSeparator); i >= 0 {
		ref = ref[i+1:]
	}
	return strings.TrimSpace(ref)
}

// EncodeCollaboratorTag returns "collab/<id>" for the given user reference,
// or "" if the reference has no usable id.
func EncodeCollaboratorTag(ref string) string {
	id := collaboratorID(ref)
	if id == "" {
		return ""
	}
	return CollaboratorPrefix + id
}

// IsCollaboratorTag reports whether the normalized tag is a collaborator tag.
func IsCollaboratorTag(tag string) bool {
	return strings.HasPrefix(NormalizeTagName(tag), CollaboratorPrefix)
}

// ExtractCollaboratorIDs decodes the collaborator ids carried by tags. Empty
// ids are dropped and duplicates removed, keeping first-seen order.
func ExtractCollaboratorIDs(tags []string) []string {
	ids := make([]string, 0)
	for _, t := range tags {
		name := NormalizeTagName(t)
		if !strings.HasPrefix(name, CollaboratorPrefix) {
			continue
		}
		id := strings.TrimSpace(strings.TrimPrefix(name, CollaboratorPrefix))
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return dedupe(ids)
}

// MergeTagsWithCollaborators normalizes tags, strips every existing
// collaborator tag and appends tags regenerated from ids. Collaborator tags
// are never carried over from the input list.
func MergeTagsWithCollaborators(tags []string, ids []string) []string {
	merged := make([]string, 0, len(tags)+len(ids))
	for _, t := range NormalizeTagList(tags) {
		if strings.HasPrefix(t, CollaboratorPrefix) {
			continue
		}
		merged = append(merged, t)
	}

	for _, id := range ids {
		if tag := EncodeCollaboratorTag(id); tag != "" {
			merged = append(merged, tag)
		}
	}
	return dedupe(merged)
}

var filterEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// BuildCollaboratorFilterExpression returns the remote list filter selecting
// memos shared with userID, e.g. `"collab/alice" in tags`. It returns "" when
// the id resolves empty.
func BuildCollaboratorFilterExpression(userID string) string {
	tag := EncodeCollaboratorTag(userID)
	if tag == "" {
		return ""
	}
	return `"` + filterEscaper.Replace(tag) + `" in tags`
}
