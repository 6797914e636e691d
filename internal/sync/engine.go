// Package sync implements resumable incremental sync from the remote
// tracker into the local store: cursor determination, the keyset page
// loop, deletion reconciliation, and metadata refresh.
package sync

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/ysksm/jd-sub000/internal/remoteclient"
	"github.com/ysksm/jd-sub000/internal/repo"
	"github.com/ysksm/jd-sub000/internal/types"
)

// Engine orchestrates one project's sync against a remote client and the
// local repositories.
type Engine struct {
	client      *remoteclient.Client
	issues      repo.IssueRepository
	changes     repo.ChangeHistoryRepository
	metadata    repo.MetadataRepository
	syncHistory repo.SyncHistoryRepository
	pageSize    int
}

// New constructs an Engine with its dependencies passed explicitly; no DI
// framework.
func New(client *remoteclient.Client, issues repo.IssueRepository, changes repo.ChangeHistoryRepository,
	metadata repo.MetadataRepository, syncHistory repo.SyncHistoryRepository) *Engine {
	return &Engine{
		client:      client,
		issues:      issues,
		changes:     changes,
		metadata:    metadata,
		syncHistory: syncHistory,
		pageSize:    100,
	}
}

// Params are the inputs to one Run invocation.
type Params struct {
	ProjectKey   string
	ProjectID    string
	Checkpoint   *types.SyncCheckpoint
	OnCheckpoint func(types.SyncCheckpoint)
}

// Result summarizes one sync run.
type Result struct {
	ProjectKey      string
	IssuesSynced    int
	MetadataUpdated bool
	Success         bool
	ErrorMessage    string
}

// ResumableResult pairs a Result with the last checkpoint known durable,
// so the caller can persist it and retry from that point.
type ResumableResult struct {
	Result     Result
	Checkpoint *types.SyncCheckpoint
}

// Run executes steps 1-6 of the incremental sync algorithm.
func (e *Engine) Run(ctx context.Context, params Params) (ResumableResult, error) {
	started := time.Now()

	isFullSync := params.Checkpoint == nil
	var since *time.Time
	if params.Checkpoint != nil {
		since = &params.Checkpoint.LastIssueUpdatedAt
	}

	total, err := e.client.FetchCount(ctx, params.ProjectKey)
	if err != nil {
		total = 0 // a failed count only zeroes TotalItems; the page loop does not use total
	}

	lastGood := params.Checkpoint
	itemsProcessed := 0
	if params.Checkpoint != nil {
		itemsProcessed = params.Checkpoint.ItemsProcessed
	}
	var seenKeys []string

	pageToken := ""
	for {
		page, err := e.client.FetchIssuesPage(ctx, remoteclient.IssuesPageParams{
			ProjectKey:    params.ProjectKey,
			Since:         since,
			MaxResults:    e.pageSize,
			NextPageToken: pageToken,
		})
		if err != nil {
			return e.fail(ctx, params, started, itemsProcessed, total, lastGood, err)
		}

		if len(page.Issues) > 0 {
			if err := e.issues.BatchUpsert(ctx, page.Issues); err != nil {
				return e.fail(ctx, params, started, itemsProcessed, total, lastGood, err)
			}
		}
		if len(page.History) > 0 {
			if err := e.changes.BatchInsert(ctx, page.History); err != nil {
				return e.fail(ctx, params, started, itemsProcessed, total, lastGood, err)
			}
		}

		for _, iss := range page.Issues {
			seenKeys = append(seenKeys, iss.Key)
		}
		itemsProcessed += len(page.Issues)

		if maxUpdated, maxKey, ok := latestCursor(page.Issues); ok {
			newCheckpoint := types.SyncCheckpoint{
				LastIssueUpdatedAt: maxUpdated,
				LastIssueKey:       maxKey,
				ItemsProcessed:     itemsProcessed,
				TotalItems:         total,
			}
			e.invokeCheckpoint(params.OnCheckpoint, newCheckpoint)
			lastGood = &newCheckpoint
		}

		if page.IsLast {
			break
		}
		pageToken = page.NextPageToken
	}

	if isFullSync {
		if _, err := e.issues.MarkDeletedNotInKeys(ctx, params.ProjectID, seenKeys); err != nil {
			return e.fail(ctx, params, started, itemsProcessed, total, lastGood, err)
		}
	}

	metadataUpdated := true
	if err := e.refreshMetadata(ctx, params.ProjectKey, params.ProjectID); err != nil {
		metadataUpdated = false
		log.Printf("sync: metadata refresh for %s failed: %v", params.ProjectKey, err)
	}

	result := Result{
		ProjectKey:      params.ProjectKey,
		IssuesSynced:    itemsProcessed,
		MetadataUpdated: metadataUpdated,
		Success:         true,
	}
	e.appendHistory(ctx, params.ProjectID, result, started, total)

	return ResumableResult{Result: result, Checkpoint: nil}, nil
}

// fail records a failed SyncHistory row and returns the last checkpoint
// known durable, so the caller can resume from it.
func (e *Engine) fail(ctx context.Context, params Params, started time.Time, itemsProcessed, total int,
	lastGood *types.SyncCheckpoint, cause error) (ResumableResult, error) {
	result := Result{
		ProjectKey:   params.ProjectKey,
		IssuesSynced: itemsProcessed,
		Success:      false,
		ErrorMessage: cause.Error(),
	}
	e.appendHistory(ctx, params.ProjectID, result, started, total)
	return ResumableResult{Result: result, Checkpoint: lastGood}, nil
}

func (e *Engine) appendHistory(ctx context.Context, projectID string, result Result, started time.Time, total int) {
	status := types.SyncStatusCompleted
	if !result.Success {
		status = types.SyncStatusFailed
	}
	record := types.SyncHistoryRecord{
		ProjectID:      projectID,
		Status:         status,
		ItemsProcessed: result.IssuesSynced,
		TotalItems:     total,
		ErrorMessage:   result.ErrorMessage,
		StartedAt:      started,
		FinishedAt:     time.Now(),
	}
	if err := e.syncHistory.Append(ctx, record); err != nil {
		log.Printf("sync: failed to append sync history for project %s: %v", projectID, err)
	}
}

// invokeCheckpoint calls the caller's callback, recovering from a panic so
// that a broken callback cannot abort the sync.
func (e *Engine) invokeCheckpoint(cb func(types.SyncCheckpoint), checkpoint types.SyncCheckpoint) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("sync: checkpoint callback panicked: %v", r)
		}
	}()
	cb(checkpoint)
}

// refreshMetadata fetches the project metadata and upserts its six
// dimensions (step 5); the field catalog in the fetched Metadata is not
// stored here.
func (e *Engine) refreshMetadata(ctx context.Context, projectKey, projectID string) error {
	md, err := e.client.FetchMetadata(ctx, projectKey, projectID)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}
	if err := e.metadata.UpsertStatuses(ctx, md.Statuses); err != nil {
		return err
	}
	if err := e.metadata.UpsertPriorities(ctx, md.Priorities); err != nil {
		return err
	}
	if err := e.metadata.UpsertIssueTypes(ctx, md.IssueTypes); err != nil {
		return err
	}
	if err := e.metadata.UpsertLabels(ctx, md.Labels); err != nil {
		return err
	}
	if err := e.metadata.UpsertComponents(ctx, md.Components); err != nil {
		return err
	}
	return e.metadata.UpsertFixVersions(ctx, md.FixVersions)
}

// latestCursor returns the checkpoint cursor for a batch: the max Updated
// timestamp, and the lexicographically-max key at that timestamp.
func latestCursor(issues []types.Issue) (time.Time, string, bool) {
	if len(issues) == 0 {
		return time.Time{}, "", false
	}
	sorted := make([]types.Issue, len(issues))
	copy(sorted, issues)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].UpdatedDate.Equal(sorted[j].UpdatedDate) {
			return sorted[i].UpdatedDate.Before(sorted[j].UpdatedDate)
		}
		return sorted[i].Key < sorted[j].Key
	})
	last := sorted[len(sorted)-1]
	return last.UpdatedDate, last.Key, true
}
