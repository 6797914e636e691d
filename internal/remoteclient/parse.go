package remoteclient

import (
	"strings"

	"github.com/ysksm/jd-sub000/internal/jsonvalue"
	"github.com/ysksm/jd-sub000/internal/types"
)

// ParseOptions controls which custom field ids are probed for sprint/team
// extraction. The defaults mirror the ids observed in the wild by the
// tracker's own sync tooling; operators with different field layouts can
// override either list.
type ParseOptions struct {
	SprintFieldIDs []string
	TeamFieldIDs   []string
}

// DefaultParseOptions returns the field id candidates used when the caller
// does not configure its own.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		SprintFieldIDs: []string{"sprint", "customfield_10020", "customfield_10104", "customfield_10000"},
		TeamFieldIDs:   []string{"team", "customfield_10001", "customfield_10002", "customfield_10100", "customfield_10101"},
	}
}

// ParseIssue decodes one issue object from the remote's JSON, extracting
// the flat Issue columns and its embedded changelog. raw carries the
// verbatim issue object, ordered exactly as received, for RawPayload.
// Issues lacking id, key, or summary are rejected with ok=false rather
// than an error, matching the sync engine's "skip and continue" policy.
func ParseIssue(raw []byte, opts ParseOptions) (issue types.Issue, history []types.ChangeHistoryItem, ok bool, err error) {
	doc, err := jsonvalue.Parse(raw)
	if err != nil {
		return types.Issue{}, nil, false, err
	}

	id, hasID := doc.Get("id")
	key, hasKey := doc.Get("key")
	fields, hasFields := doc.Get("fields")
	summary, hasSummary := fields.Get("summary")
	if !hasID || !hasKey || !hasFields || !hasSummary || !summary.IsString() {
		return types.Issue{}, nil, false, nil
	}

	issue = types.Issue{
		ID:         id.Str(),
		Key:        key.Str(),
		Summary:    summary.Str(),
		RawPayload: doc,
	}

	if project, isOK := fields.GetPath("project", "id"); isOK {
		issue.ProjectID = project.Str()
	}
	issue.Status = nameOf(fields, "status")
	issue.Priority = nameOf(fields, "priority")
	issue.IssueType = nameOf(fields, "issuetype")
	issue.Resolution = nameOf(fields, "resolution")
	issue.Assignee = displayNameOf(fields, "assignee")
	issue.Reporter = displayNameOf(fields, "reporter")

	if labels, isOK := fields.Get("labels"); isOK {
		issue.Labels = labels.StringItems()
	}
	if components, isOK := fields.Get("components"); isOK {
		issue.Components = components.NamesOf()
	}
	if fixVersions, isOK := fields.Get("fixVersions"); isOK {
		issue.FixVersions = fixVersions.NamesOf()
	}
	if parentKey, isOK := fields.GetPath("parent", "key"); isOK {
		issue.ParentKey = parentKey.Str()
	}

	if sprint := extractSprint(fields, opts.SprintFieldIDs); sprint != "" {
		issue.Sprint = sprint
	}
	if team := extractTeam(fields, opts.TeamFieldIDs); team != "" {
		issue.Team = team
	}

	if due, isOK := fields.Get("duedate"); isOK && due.IsString() && due.Str() != "" {
		if t, dueErr := ParseDueDate(due.Str()); dueErr == nil {
			issue.DueDate = &t
		}
	}
	if created, isOK := fields.Get("created"); isOK && created.IsString() {
		if t, createErr := ParseDateTime(created.Str()); createErr == nil {
			issue.CreatedDate = t
		}
	}
	if updated, isOK := fields.Get("updated"); isOK && updated.IsString() {
		if t, updateErr := ParseDateTime(updated.Str()); updateErr == nil {
			issue.UpdatedDate = t
		}
	}

	history = extractChangeHistory(doc, issue.ID, issue.Key)

	return issue, history, true, nil
}

func nameOf(fields jsonvalue.Value, member string) string {
	v, isOK := fields.GetPath(member, "name")
	if !isOK || !v.IsString() {
		return ""
	}
	return v.Str()
}

func displayNameOf(fields jsonvalue.Value, member string) string {
	v, isOK := fields.GetPath(member, "displayName")
	if !isOK || !v.IsString() {
		return ""
	}
	return v.Str()
}

// extractSprint probes fieldIDs in order; for each it prefers an array of
// sprint objects (last entry with state "active", else the last with state
// "closed", else the last with a name), falling back to the legacy
// "…name=X,…" string form.
func extractSprint(fields jsonvalue.Value, fieldIDs []string) string {
	for _, id := range fieldIDs {
		v, isOK := fields.Get(id)
		if !isOK {
			continue
		}
		if v.IsArray() {
			if name := preferredSprintName(v.Items()); name != "" {
				return name
			}
			continue
		}
		if v.IsString() {
			if name := parseLegacySprintString(v.Str()); name != "" {
				return name
			}
		}
	}
	return ""
}

func preferredSprintName(sprints []jsonvalue.Value) string {
	var lastNamed, lastClosed string
	for i := len(sprints) - 1; i >= 0; i-- {
		name, hasName := sprints[i].Get("name")
		if !hasName || !name.IsString() {
			continue
		}
		if lastNamed == "" {
			lastNamed = name.Str()
		}
		state, _ := sprints[i].Get("state")
		switch state.Str() {
		case "active":
			return name.Str()
		case "closed":
			if lastClosed == "" {
				lastClosed = name.Str()
			}
		}
	}
	if lastClosed != "" {
		return lastClosed
	}
	return lastNamed
}

func parseLegacySprintString(s string) string {
	nameStart := strings.Index(s, "name=")
	if nameStart < 0 {
		return ""
	}
	rest := s[nameStart+len("name="):]
	if comma := strings.IndexByte(rest, ','); comma >= 0 {
		return rest[:comma]
	}
	if bracket := strings.IndexByte(rest, ']'); bracket >= 0 {
		return rest[:bracket]
	}
	return ""
}

// extractTeam probes fieldIDs in order, trying an object's "name" then
// "value" member before falling back to a raw string value.
func extractTeam(fields jsonvalue.Value, fieldIDs []string) string {
	for _, id := range fieldIDs {
		v, isOK := fields.Get(id)
		if !isOK {
			continue
		}
		if name, hasName := v.Get("name"); hasName && name.IsString() {
			return name.Str()
		}
		if value, hasValue := v.Get("value"); hasValue && value.IsString() {
			return value.Str()
		}
		if v.IsString() && v.Str() != "" {
			return v.Str()
		}
	}
	return ""
}

// extractChangeHistory flattens the embedded changelog.histories[*].items[*]
// structure into one row per field change.
func extractChangeHistory(doc jsonvalue.Value, issueID, issueKey string) []types.ChangeHistoryItem {
	histories, isOK := doc.GetPath("changelog", "histories")
	if !isOK || !histories.IsArray() {
		return nil
	}

	var out []types.ChangeHistoryItem
	for _, h := range histories.Items() {
		historyID, _ := h.Get("id")
		author, _ := h.Get("author")
		createdRaw, _ := h.Get("created")
		changedAt, _ := ParseDateTime(createdRaw.Str())

		items, isOK := h.Get("items")
		if !isOK || !items.IsArray() {
			continue
		}
		for _, item := range items.Items() {
			field, _ := item.Get("field")
			fieldType, _ := item.Get("fieldtype")
			fromValue, _ := item.Get("from")
			fromString, _ := item.Get("fromString")
			toValue, _ := item.Get("to")
			toString, _ := item.Get("toString")

			out = append(out, types.ChangeHistoryItem{
				IssueID:           issueID,
				IssueKey:          issueKey,
				HistoryID:         historyID.Str(),
				AuthorAccountID:   accountIDOf(author),
				AuthorDisplayName: displayNameOfValue(author),
				Field:             field.Str(),
				FieldType:         fieldType.Str(),
				FromValue:         fromValue.Str(),
				FromString:        fromString.Str(),
				ToValue:           toValue.Str(),
				ToString:          toString.Str(),
				ChangedAt:         changedAt,
			})
		}
	}
	return out
}

func accountIDOf(v jsonvalue.Value) string {
	id, isOK := v.Get("accountId")
	if !isOK || !id.IsString() {
		return ""
	}
	return id.Str()
}

func displayNameOfValue(v jsonvalue.Value) string {
	name, isOK := v.Get("displayName")
	if !isOK || !name.IsString() {
		return ""
	}
	return name.Str()
}
