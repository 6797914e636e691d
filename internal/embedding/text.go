package embedding

import (
	"strings"

	"github.com/ysksm/jd-sub000/internal/types"
)

// buildEmbeddingText concatenates labeled fields in a fixed order,
// skipping absent ones, so the same issue always embeds to the same text.
func buildEmbeddingText(issue types.Issue) string {
	var parts []string
	parts = append(parts, "Key: "+issue.Key)
	parts = append(parts, "Summary: "+issue.Summary)
	if issue.Description != "" {
		parts = append(parts, "Description: "+issue.Description)
	}
	if issue.Status != "" {
		parts = append(parts, "Status: "+issue.Status)
	}
	if issue.Priority != "" {
		parts = append(parts, "Priority: "+issue.Priority)
	}
	if issue.IssueType != "" {
		parts = append(parts, "Type: "+issue.IssueType)
	}
	if issue.Assignee != "" {
		parts = append(parts, "Assignee: "+issue.Assignee)
	}
	if issue.Reporter != "" {
		parts = append(parts, "Reporter: "+issue.Reporter)
	}
	if len(issue.Labels) > 0 {
		parts = append(parts, "Labels: "+strings.Join(issue.Labels, ", "))
	}
	if len(issue.Components) > 0 {
		parts = append(parts, "Components: "+strings.Join(issue.Components, ", "))
	}
	if issue.Sprint != "" {
		parts = append(parts, "Sprint: "+issue.Sprint)
	}
	return strings.Join(parts, "\n")
}
