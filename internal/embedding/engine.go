// Package embedding generates and searches vector embeddings for issues:
// building a fixed-order text representation per issue, batching calls to
// a pluggable Provider, and upserting the results through
// repo.EmbeddingsRepository.
package embedding

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ysksm/jd-sub000/internal/embedding/provider"
	"github.com/ysksm/jd-sub000/internal/repo"
	"github.com/ysksm/jd-sub000/internal/types"
)

const defaultBatchSize = 50
const searchCandidateCap = 10000

// Engine generates embeddings for a project's (or all) issues and serves
// semantic search against the resulting vector store.
type Engine struct {
	issues     repo.IssueRepository
	embeddings repo.EmbeddingsRepository
	provider   provider.Provider
	batchSize  int
}

// New constructs an Engine bound to one provider. The vec0 table's
// vector width is derived from the provider at Run time, not fixed at
// construction, so openai, cohere and ollama providers are all usable
// against a fresh store; InitSchema rejects a provider swap against a
// store that already holds vectors at a different width.
func New(issues repo.IssueRepository, embeddings repo.EmbeddingsRepository, p provider.Provider) (*Engine, error) {
	return &Engine{issues: issues, embeddings: embeddings, provider: p, batchSize: defaultBatchSize}, nil
}

// Params are the inputs to one Run invocation.
type Params struct {
	ProjectKey      *string
	ForceRegenerate bool
	BatchSize       int
}

// Timing breaks down where Run spent its time, matching the original
// engine's reported fields.
type Timing struct {
	FetchIssuesSecs    float64
	EmbeddingAPISecs   float64
	StoreEmbeddingSecs float64
}

// Result summarizes one embedding generation run.
type Result struct {
	TotalIssues         int
	EmbeddingsGenerated int
	EmbeddingsSkipped   int
	Errors              int
	DurationSecs        float64
	Timing              Timing
}

// Run generates embeddings for the candidate issue set: all issues under
// ProjectKey if set, else every issue up to the 10,000-issue cap.
// Existing embeddings are skipped unless ForceRegenerate is set.
func (e *Engine) Run(ctx context.Context, params Params) (Result, error) {
	totalStart := time.Now()
	var timing Timing

	if err := e.embeddings.InitSchema(ctx, e.provider.Dimension()); err != nil {
		return Result{}, fmt.Errorf("init embeddings schema: %w", err)
	}

	fetchStart := time.Now()
	searchParams := types.SearchParams{Limit: searchCandidateCap}
	if params.ProjectKey != nil {
		searchParams.ProjectKey = *params.ProjectKey
	}
	issues, err := e.issues.Search(ctx, searchParams)
	if err != nil {
		return Result{}, fmt.Errorf("search candidate issues: %w", err)
	}
	timing.FetchIssuesSecs = time.Since(fetchStart).Seconds()

	totalIssues := len(issues)
	if totalIssues == 0 {
		return Result{DurationSecs: time.Since(totalStart).Seconds(), Timing: timing}, nil
	}

	toProcess, skipped := e.filterCandidates(ctx, issues, params.ForceRegenerate)
	if len(toProcess) == 0 {
		return Result{
			TotalIssues: totalIssues, EmbeddingsSkipped: skipped,
			DurationSecs: time.Since(totalStart).Seconds(), Timing: timing,
		}, nil
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = e.batchSize
	}

	var generated, errCount int
	for start := 0; start < len(toProcess); start += batchSize {
		end := min(start+batchSize, len(toProcess))
		batch := toProcess[start:end]

		texts := make([]string, len(batch))
		for i, issue := range batch {
			texts[i] = buildEmbeddingText(issue)
		}

		apiStart := time.Now()
		vectors, err := e.provider.EmbedBatch(ctx, texts)
		timing.EmbeddingAPISecs += time.Since(apiStart).Seconds()
		if err != nil {
			log.Printf("embedding: batch of %d issues failed: %v", len(batch), err)
			errCount += len(batch)
			continue
		}

		storeStart := time.Now()
		for i, issue := range batch {
			emb := types.IssueEmbedding{
				IssueID: issue.ID, IssueKey: issue.Key, Embedding: vectors[i],
				EmbeddedText: texts[i], Provider: e.provider.ProviderName(),
				Model: e.provider.ModelName(), Dimensions: len(vectors[i]), CreatedAt: time.Now(),
			}
			if err := e.embeddings.UpsertEmbedding(ctx, emb); err != nil {
				log.Printf("embedding: failed to store embedding for %s: %v", issue.Key, err)
				errCount++
				continue
			}
			generated++
		}
		timing.StoreEmbeddingSecs += time.Since(storeStart).Seconds()
	}

	return Result{
		TotalIssues: totalIssues, EmbeddingsGenerated: generated, EmbeddingsSkipped: skipped,
		Errors: errCount, DurationSecs: time.Since(totalStart).Seconds(), Timing: timing,
	}, nil
}

func (e *Engine) filterCandidates(ctx context.Context, issues []types.Issue, force bool) (toProcess []types.Issue, skipped int) {
	if force {
		return issues, 0
	}
	for _, issue := range issues {
		has, err := e.embeddings.HasEmbedding(ctx, issue.ID)
		if err != nil || !has {
			toProcess = append(toProcess, issue)
			continue
		}
		skipped++
	}
	return toProcess, skipped
}

// Search embeds query once and runs semantic search against the stored
// issue vectors, restricted to projectFilter if set.
func (e *Engine) Search(ctx context.Context, query string, projectFilter *string, limit int) ([]types.SemanticSearchResult, error) {
	vector, err := e.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed search query: %w", err)
	}

	filter := ""
	if projectFilter != nil {
		filter = *projectFilter
	}
	return e.embeddings.SemanticSearch(ctx, vector, filter, limit)
}
