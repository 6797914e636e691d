package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ysksm/jd-sub000/internal/jsonvalue"
	"github.com/ysksm/jd-sub000/internal/types"
)

func TestGenerateSnapshotsForIssueNoHistoryEmitsSingleCurrentSnapshot(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	issue := types.Issue{
		ID: "1", Key: "PROJ-1", ProjectID: "P", Summary: "s", Status: "Open",
		CreatedDate: created, RawPayload: jsonvalue.EmptyObject(),
	}

	result := generateSnapshotsForIssue(issue, nil)
	require.Len(t, result.Snapshots, 1)
	snap := result.Snapshots[0]
	require.Equal(t, 1, snap.Version)
	require.Equal(t, created, snap.ValidFrom)
	require.Nil(t, snap.ValidTo)
	require.Equal(t, "Open", snap.Status)
}

// TestGenerateSnapshotsForIssueReconstructsStatusHistory covers the
// status-reconstruction scenario: two sequential status transitions
// produce three contiguous versions with the correct as-of status.
func TestGenerateSnapshotsForIssueReconstructsStatusHistory(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	issue := types.Issue{
		ID: "1", Key: "PROJ-1", ProjectID: "P", Summary: "s", Status: "Done",
		CreatedDate: created, RawPayload: jsonvalue.EmptyObject(),
	}
	history := []types.ChangeHistoryItem{
		{IssueID: "1", IssueKey: "PROJ-1", HistoryID: "h1", Field: "status",
			FromString: "To Do", ToString: "In Progress", ChangedAt: t1},
		{IssueID: "1", IssueKey: "PROJ-1", HistoryID: "h2", Field: "status",
			FromString: "In Progress", ToString: "Done", ChangedAt: t2},
	}

	result := generateSnapshotsForIssue(issue, history)
	require.Len(t, result.Snapshots, 3)

	v1, v2, v3 := result.Snapshots[0], result.Snapshots[1], result.Snapshots[2]

	require.Equal(t, 1, v1.Version)
	require.Equal(t, created, v1.ValidFrom)
	require.Equal(t, &t1, v1.ValidTo)
	require.Equal(t, "To Do", v1.Status)

	require.Equal(t, 2, v2.Version)
	require.Equal(t, t1, v2.ValidFrom)
	require.Equal(t, &t2, v2.ValidTo)
	require.Equal(t, "In Progress", v2.Status)

	require.Equal(t, 3, v3.Version)
	require.Equal(t, t2, v3.ValidFrom)
	require.Nil(t, v3.ValidTo)
	require.Equal(t, "Done", v3.Status)
}

// TestGenerateSnapshotsForIssueReconstructsLabelsFromRawPayload covers the
// labels-reconstruction scenario: a single whitespace-joined label
// change is re-projected from raw_payload into each snapshot's Labels.
func TestGenerateSnapshotsForIssueReconstructsLabelsFromRawPayload(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	raw, err := jsonvalue.Parse([]byte(`{"fields":{"labels":["a","b","c"]}}`))
	require.NoError(t, err)

	issue := types.Issue{
		ID: "1", Key: "PROJ-1", ProjectID: "P", Summary: "s",
		Labels: []string{"a", "b", "c"}, CreatedDate: created, RawPayload: raw,
	}
	history := []types.ChangeHistoryItem{
		{IssueID: "1", IssueKey: "PROJ-1", HistoryID: "h1", Field: "labels",
			FromString: "a b", ToString: "a b c", ChangedAt: t1},
	}

	result := generateSnapshotsForIssue(issue, history)
	require.Len(t, result.Snapshots, 2)
	require.Equal(t, []string{"a", "b"}, result.Snapshots[0].Labels)
	require.Equal(t, []string{"a", "b", "c"}, result.Snapshots[1].Labels)
}

func TestGenerateSnapshotsForIssueGroupsSameTimestampIntoOneTransition(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	issue := types.Issue{
		ID: "1", Key: "PROJ-1", ProjectID: "P", Summary: "s", Status: "Done", Priority: "High",
		CreatedDate: created, RawPayload: jsonvalue.EmptyObject(),
	}
	history := []types.ChangeHistoryItem{
		{IssueID: "1", IssueKey: "PROJ-1", HistoryID: "h1", Field: "status",
			FromString: "To Do", ToString: "Done", ChangedAt: t1},
		{IssueID: "1", IssueKey: "PROJ-1", HistoryID: "h1", Field: "priority",
			FromString: "Low", ToString: "High", ChangedAt: t1},
	}

	result := generateSnapshotsForIssue(issue, history)
	require.Len(t, result.Snapshots, 2) // one group, one transition, two versions total
	require.Equal(t, "To Do", result.Snapshots[0].Status)
	require.Equal(t, "Low", result.Snapshots[0].Priority)
	require.Equal(t, "Done", result.Snapshots[1].Status)
	require.Equal(t, "High", result.Snapshots[1].Priority)
}

func TestGenerateSnapshotsForIssueMissingCreatedDateUsesNow(t *testing.T) {
	issue := types.Issue{ID: "1", Key: "PROJ-1", ProjectID: "P", Summary: "s", RawPayload: jsonvalue.EmptyObject()}
	result := generateSnapshotsForIssue(issue, nil)
	require.Len(t, result.Snapshots, 1)
	require.False(t, result.Snapshots[0].ValidFrom.IsZero())
}

func TestApplyChangeReverseUnknownFieldWithNoExistingValueNullsAndCounts(t *testing.T) {
	raw := jsonvalue.EmptyObject()
	change := types.ChangeHistoryItem{Field: "customfield_99999"}
	result, nullified := applyChangeReverse(raw, change)
	require.True(t, nullified)
	v, ok := getField(result, "customfield_99999")
	require.True(t, ok)
	require.True(t, v.IsNull())
}
