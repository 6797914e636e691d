package embedding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ysksm/jd-sub000/internal/types"
)

func TestBuildEmbeddingTextIncludesPresentFieldsInFixedOrder(t *testing.T) {
	issue := types.Issue{
		Key: "PROJ-123", Summary: "Fix login bug", Description: "Users cannot login with SSO",
		Status: "Open", Priority: "High", IssueType: "Bug",
		Assignee: "john.doe", Reporter: "jane.doe",
		Labels: []string{"login", "sso"}, Components: []string{"auth"},
	}

	text := buildEmbeddingText(issue)

	require.Contains(t, text, "Key: PROJ-123")
	require.Contains(t, text, "Summary: Fix login bug")
	require.Contains(t, text, "Description: Users cannot login with SSO")
	require.Contains(t, text, "Status: Open")
	require.Contains(t, text, "Priority: High")
	require.Contains(t, text, "Type: Bug")
	require.Contains(t, text, "Assignee: john.doe")
	require.Contains(t, text, "Reporter: jane.doe")
	require.Contains(t, text, "Labels: login, sso")
	require.Contains(t, text, "Components: auth")
}

func TestBuildEmbeddingTextSkipsAbsentFields(t *testing.T) {
	issue := types.Issue{Key: "PROJ-1", Summary: "s"}
	text := buildEmbeddingText(issue)
	require.Equal(t, "Key: PROJ-1\nSummary: s", text)
}
