// Package snapshot implements the bitemporal reconstruction engine:
// replaying each issue's changelog both backward (to derive its initial
// state) and forward (to produce one version per change group), batched
// and checkpointed across a project's issues.
package snapshot

import (
	"context"
	"fmt"
	"log"

	"github.com/ysksm/jd-sub000/internal/repo"
	"github.com/ysksm/jd-sub000/internal/types"
)

const defaultBatchSize = 500

// Engine orchestrates snapshot generation for one project against the
// local repositories. It performs no remote I/O.
type Engine struct {
	issues    repo.IssueRepository
	changes   repo.ChangeHistoryRepository
	snapshots repo.IssueSnapshotRepository
	batchSize int
}

// New constructs an Engine with the default batch size of 500.
func New(issues repo.IssueRepository, changes repo.ChangeHistoryRepository, snapshots repo.IssueSnapshotRepository) *Engine {
	return &Engine{issues: issues, changes: changes, snapshots: snapshots, batchSize: defaultBatchSize}
}

// Params are the inputs to one Run invocation.
type Params struct {
	ProjectKey string
	ProjectID  string
	Checkpoint *types.SnapshotCheckpoint
	OnProgress func(types.SnapshotProgress)
	BatchSize  int
}

// Result summarizes one snapshot generation run.
type Result struct {
	ProjectKey         string
	IssuesProcessed    int
	SnapshotsGenerated int
	UnknownFieldNulls  int
	Completed          bool
	Checkpoint         *types.SnapshotCheckpoint
}

// Run processes a project's issues in batches of BatchSize (default 500),
// keyset-paginated by (project_id, last_issue_id), deleting and
// regenerating each issue's snapshot chain. Each batch's deletes and
// insert commit as one transaction before the next batch is fetched, so
// the returned checkpoint always names the next issue to resume from and
// no batch is ever left with old snapshots deleted but no replacement
// committed.
func (e *Engine) Run(ctx context.Context, params Params) (Result, error) {
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = e.batchSize
	}

	total, err := e.issues.CountByProject(ctx, params.ProjectID)
	if err != nil {
		return Result{}, fmt.Errorf("count issues for project %s: %w", params.ProjectKey, err)
	}
	if total == 0 {
		return Result{ProjectKey: params.ProjectKey, Completed: true}, nil
	}

	afterID := ""
	issuesProcessed := 0
	snapshotsGenerated := 0
	unknownNulls := 0
	if params.Checkpoint != nil {
		afterID = params.Checkpoint.LastIssueID
		issuesProcessed = params.Checkpoint.IssuesProcessed
		snapshotsGenerated = params.Checkpoint.SnapshotsGenerated
	}

	for {
		// An empty afterID matches every issue id, so the first batch is
		// keyset-paged the same way as the ones after it.
		batch, hasMore, err := e.issues.FindByProjectAfterID(ctx, params.ProjectID, afterID, batchSize)
		if err != nil {
			return e.resumeAt(params, issuesProcessed, total, snapshotsGenerated, afterID, unknownNulls), err
		}
		if len(batch) == 0 {
			break
		}

		var batchSnapshots []types.IssueSnapshot
		var currentKey string
		for _, issue := range batch {
			currentKey = issue.Key

			history, err := e.changes.FindByIssueKey(ctx, issue.Key)
			if err != nil {
				return e.resumeAt(params, issuesProcessed, total, snapshotsGenerated, afterID, unknownNulls), err
			}

			result := generateSnapshotsForIssue(issue, history)
			batchSnapshots = append(batchSnapshots, result.Snapshots...)
			unknownNulls += result.UnknownFieldNulls
		}

		// Each batch's deletes and insert run inside one transaction, so an
		// error or crash between them can never leave an issue with its old
		// snapshots gone and no replacement committed.
		txErr := e.snapshots.WithTx(ctx, func(tx repo.IssueSnapshotRepository) error {
			for _, issue := range batch {
				if err := tx.DeleteByIssueID(ctx, issue.ID); err != nil {
					return err
				}
			}
			if len(batchSnapshots) == 0 {
				return nil
			}
			return tx.BulkInsert(ctx, batchSnapshots)
		})
		if txErr != nil {
			return e.resumeAt(params, issuesProcessed, total, snapshotsGenerated, afterID, unknownNulls), txErr
		}

		issuesProcessed += len(batch)
		snapshotsGenerated += len(batchSnapshots)
		afterID = batch[len(batch)-1].ID
		lastKey := batch[len(batch)-1].Key

		e.invokeProgress(params.OnProgress, types.SnapshotProgress{
			IssuesProcessed:    issuesProcessed,
			TotalIssues:        total,
			SnapshotsGenerated: snapshotsGenerated,
			CurrentIssueKey:    currentKey,
			LastIssueID:        afterID,
			LastIssueKey:       lastKey,
		})

		if !hasMore {
			break
		}
	}

	return Result{
		ProjectKey:         params.ProjectKey,
		IssuesProcessed:    issuesProcessed,
		SnapshotsGenerated: snapshotsGenerated,
		UnknownFieldNulls:  unknownNulls,
		Completed:          true,
	}, nil
}

func (e *Engine) resumeAt(params Params, issuesProcessed, total, snapshotsGenerated int, lastIssueID string, unknownNulls int) Result {
	return Result{
		ProjectKey:         params.ProjectKey,
		IssuesProcessed:    issuesProcessed,
		SnapshotsGenerated: snapshotsGenerated,
		UnknownFieldNulls:  unknownNulls,
		Completed:          false,
		Checkpoint: &types.SnapshotCheckpoint{
			LastIssueID:        lastIssueID,
			IssuesProcessed:    issuesProcessed,
			TotalIssues:        total,
			SnapshotsGenerated: snapshotsGenerated,
		},
	}
}

// invokeProgress calls the caller's callback, recovering from a panic so
// a broken callback cannot abort generation.
func (e *Engine) invokeProgress(cb func(types.SnapshotProgress), progress types.SnapshotProgress) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("snapshot: progress callback panicked: %v", r)
		}
	}()
	cb(progress)
}
