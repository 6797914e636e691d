package snapshot

import (
	"sort"
	"strings"
	"time"

	"github.com/ysksm/jd-sub000/internal/jsonvalue"
	"github.com/ysksm/jd-sub000/internal/types"
)

// reconstructResult is the pure output of replaying one issue's history:
// the ordered version chain plus a count of Unknown-field reverts that
// fell back to null for lack of any prior value to route by.
type reconstructResult struct {
	Snapshots         []types.IssueSnapshot
	UnknownFieldNulls int
}

// generateSnapshotsForIssue replays issue's changelog into its full
// bitemporal version history. It performs no I/O: callers own fetching
// the issue and its history and persisting the result.
func generateSnapshotsForIssue(issue types.Issue, history []types.ChangeHistoryItem) reconstructResult {
	groups := groupByChangedAt(history)
	timestamps := make([]time.Time, 0, len(groups))
	for t := range groups {
		timestamps = append(timestamps, t)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	createdAt := issue.CreatedDate
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if len(timestamps) == 0 {
		snap := snapshotFromIssue(issue, 1, createdAt, nil, issue.RawPayload)
		return reconstructResult{Snapshots: []types.IssueSnapshot{snap}}
	}

	state := initialState(issue)
	rawData := issue.RawPayload
	unknownNulls := 0

	// Reverse every group, newest to oldest, to derive the state and
	// raw_payload as they were immediately after issue creation.
	for i := len(timestamps) - 1; i >= 0; i-- {
		for _, change := range groups[timestamps[i]] {
			applyStateReverse(state, change)
			var nullified bool
			rawData, nullified = applyChangeReverse(rawData, change)
			if nullified {
				unknownNulls++
			}
		}
	}

	snapshots := make([]types.IssueSnapshot, 0, len(timestamps)+1)
	firstChange := timestamps[0]
	snapshots = append(snapshots, snapshotFromState(issue, 1, createdAt, &firstChange, state, rawData))

	for i, changeTime := range timestamps {
		for _, change := range groups[changeTime] {
			applyStateForward(state, change)
			var nullified bool
			rawData, nullified = applyChangeForward(rawData, change)
			if nullified {
				unknownNulls++
			}
		}

		var validTo *time.Time
		if i+1 < len(timestamps) {
			next := timestamps[i+1]
			validTo = &next
		}
		version := i + 2
		snapshots = append(snapshots, snapshotFromState(issue, version, changeTime, validTo, state, rawData))
	}

	return reconstructResult{Snapshots: snapshots, UnknownFieldNulls: unknownNulls}
}

func groupByChangedAt(history []types.ChangeHistoryItem) map[time.Time][]types.ChangeHistoryItem {
	groups := map[time.Time][]types.ChangeHistoryItem{}
	for _, item := range history {
		groups[item.ChangedAt] = append(groups[item.ChangedAt], item)
	}
	return groups
}

// initialState seeds the scalar-field state map from the issue's current
// values; history replay then walks it backward/forward in place.
func initialState(issue types.Issue) map[string]string {
	state := map[string]string{"summary": issue.Summary}
	setIfNonEmpty(state, "description", issue.Description)
	setIfNonEmpty(state, "status", issue.Status)
	setIfNonEmpty(state, "priority", issue.Priority)
	setIfNonEmpty(state, "assignee", issue.Assignee)
	setIfNonEmpty(state, "reporter", issue.Reporter)
	setIfNonEmpty(state, "issuetype", issue.IssueType)
	setIfNonEmpty(state, "resolution", issue.Resolution)
	setIfNonEmpty(state, "sprint", issue.Sprint)
	setIfNonEmpty(state, "parent", issue.ParentKey)
	return state
}

func setIfNonEmpty(state map[string]string, key, value string) {
	if value != "" {
		state[key] = value
	}
}

func applyStateReverse(state map[string]string, change types.ChangeHistoryItem) {
	field := strings.ToLower(change.Field)
	switch {
	case change.FromString != "":
		state[field] = change.FromString
	case change.FromValue != "":
		state[field] = change.FromValue
	default:
		delete(state, field)
	}
}

func applyStateForward(state map[string]string, change types.ChangeHistoryItem) {
	field := strings.ToLower(change.Field)
	switch {
	case change.ToString != "":
		state[field] = change.ToString
	case change.ToValue != "":
		state[field] = change.ToValue
	}
}

func snapshotFromIssue(issue types.Issue, version int, validFrom time.Time, validTo *time.Time, rawData jsonvalue.Value) types.IssueSnapshot {
	return types.IssueSnapshot{
		IssueID: issue.ID, IssueKey: issue.Key, ProjectID: issue.ProjectID,
		Version: version, ValidFrom: validFrom, ValidTo: validTo,
		Summary: issue.Summary, Description: issue.Description, Status: issue.Status,
		Priority: issue.Priority, Assignee: issue.Assignee, Reporter: issue.Reporter,
		IssueType: issue.IssueType, Resolution: issue.Resolution,
		Labels: issue.Labels, Components: issue.Components, FixVersions: issue.FixVersions,
		Sprint: issue.Sprint, ParentKey: issue.ParentKey, RawData: rawData,
	}
}

func snapshotFromState(issue types.Issue, version int, validFrom time.Time, validTo *time.Time,
	state map[string]string, rawData jsonvalue.Value) types.IssueSnapshot {
	labels := labelsFromRawData(rawData)
	if labels == nil {
		labels = issue.Labels
	}
	components := namedArrayFromRawData(rawData, "components")
	if components == nil {
		components = issue.Components
	}
	fixVersions := namedArrayFromRawData(rawData, "fixVersions")
	if fixVersions == nil {
		fixVersions = issue.FixVersions
	}

	return types.IssueSnapshot{
		IssueID: issue.ID, IssueKey: issue.Key, ProjectID: issue.ProjectID,
		Version: version, ValidFrom: validFrom, ValidTo: validTo,
		Summary:     stateOr(state, "summary", issue.Summary),
		Description: stateOr(state, "description", issue.Description),
		Status:      stateOr(state, "status", issue.Status),
		Priority:    stateOr(state, "priority", issue.Priority),
		Assignee:    stateOr(state, "assignee", issue.Assignee),
		Reporter:    stateOr(state, "reporter", issue.Reporter),
		IssueType:   stateOr(state, "issuetype", issue.IssueType),
		Resolution:  stateOr(state, "resolution", issue.Resolution),
		Labels:      labels,
		Components:  components,
		FixVersions: fixVersions,
		Sprint:      stateOr(state, "sprint", issue.Sprint),
		ParentKey:   stateOr(state, "parent", issue.ParentKey),
		RawData:     rawData,
	}
}

func stateOr(state map[string]string, key, fallback string) string {
	if v, ok := state[key]; ok {
		return v
	}
	return fallback
}

func labelsFromRawData(rawData jsonvalue.Value) []string {
	labels, ok := getField(rawData, "labels")
	if !ok {
		return nil
	}
	return labels.StringItems()
}

func namedArrayFromRawData(rawData jsonvalue.Value, fieldName string) []string {
	arr, ok := getField(rawData, fieldName)
	if !ok {
		return nil
	}
	return arr.NamesOf()
}
