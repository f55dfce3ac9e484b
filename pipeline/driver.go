// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package pipeline drives an ETL run: fetch a page from the tracker, embed
// and map each issue, load the page as one bulk batch, repeat.
//
// Pages are processed strictly in sequence. Within a page, issues are
// embedded and mapped concurrently on a bounded worker pool; the batch is
// only submitted once every issue of the page is done. A record that
// cannot be mapped is skipped, a rejected document is counted as failed,
// and neither stops the run. A failed fetch, an unreachable index or a
// rejected index credential aborts it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/issueindex/ai"
	"github.com/poiesic/issueindex/core"
	"github.com/poiesic/issueindex/index"
	"github.com/poiesic/issueindex/source"
	"github.com/poiesic/issueindex/storage"
	"github.com/poiesic/issueindex/transform"
	"golang.org/x/time/rate"
)

// Source reads issues one page at a time.
type Source interface {
	FetchPage(ctx context.Context, limit, offset int, includeRelations bool) (*source.Page, error)
}

// Summary reports the outcome of one run.
type Summary struct {
	RunID       string
	State       State
	StartOffset int
	Pages       int
	Fetched     int
	Indexed     int
	Skipped     int
	Failed      int
	Elapsed     time.Duration
	Err         error
}

// String renders the summary as a single line.
func (s *Summary) String() string {
	line := fmt.Sprintf("%s: fetched=%d indexed=%d skipped=%d failed=%d pages=%d elapsed=%s run=%s",
		s.State, s.Fetched, s.Indexed, s.Skipped, s.Failed, s.Pages, s.Elapsed.Round(time.Millisecond), s.RunID)
	if s.Err != nil {
		line += " error=" + s.Err.Error()
	}
	return line
}

// Driver runs the pipeline.
type Driver struct {
	source      Source
	index       index.Client
	embedder    ai.Embedder
	checkpoints storage.CheckpointRepository
	cfg         Config
	pool        *ants.Pool
	monitor     Monitor
	logger      *slog.Logger

	state State
}

// Option configures a Driver.
type Option func(*Driver) error

// WithMonitor sets the run observer.
func WithMonitor(monitor Monitor) Option {
	return func(d *Driver) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		d.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger.With("component", "pipeline")
		return nil
	}
}

// WithCheckpoints enables saving progress after every page, and resuming
// when Config.Resume is set.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(d *Driver) error {
		d.checkpoints = repo
		return nil
	}
}

// NewDriver creates a pipeline driver.
// Call Release when the driver is no longer needed.
func NewDriver(src Source, idx index.Client, embedder ai.Embedder, cfg Config, opts ...Option) (*Driver, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = defaultWorkers()
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		source:   src,
		index:    idx,
		embedder: embedder,
		cfg:      cfg,
		pool:     pool,
		monitor:  &noopMonitor{},
		logger:   slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			d.Release()
			return nil, err
		}
	}
	return d, nil
}

// Release releases the worker pool.
func (d *Driver) Release() {
	if d.pool != nil {
		d.pool.Release()
	}
}

func (d *Driver) setState(s State) {
	if d.state == s {
		return
	}
	prev := d.state
	d.state = s
	d.logger.Debug("state change", "from", prev, "to", s)
	d.monitor.StateChanged(prev, s)
}

// run carries the mutable state of one Run.
type run struct {
	summary     *Summary
	offset      int
	baseFetched int
	baseIndexed int
	started     time.Time
}

// Run executes one pipeline run and always returns a summary. The run ends
// DONE after an empty or short page, or ABORTED with Summary.Err set.
// Cancellation is observed between pages; a batch already submitted is
// allowed to finish.
func (d *Driver) Run(ctx context.Context) *Summary {
	r := &run{
		summary: &Summary{RunID: uuid.NewString(), State: StateInit},
		started: time.Now(),
	}
	d.state = StateInit
	logger := d.logger.With("run", r.summary.RunID, "index", d.cfg.IndexName)

	if err := d.init(ctx, r, logger); err != nil {
		return d.abort(r, err)
	}
	d.monitor.Start(r.summary.RunID, r.offset)
	logger.Info("run started", "offset", r.offset, "batch_size", d.cfg.BatchSize)

	var limiter *rate.Limiter
	if d.cfg.PageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(d.cfg.PageDelay), 1)
	}

	for {
		if err := ctx.Err(); err != nil {
			return d.abort(r, err)
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return d.abort(r, err)
			}
		}

		d.setState(StateFetching)
		page, err := d.source.FetchPage(ctx, d.cfg.BatchSize, r.offset, d.cfg.IncludeRelations)
		if err != nil {
			return d.abort(r, fmt.Errorf("fetch page at offset %d: %w", r.offset, err))
		}
		count := page.Len()
		d.monitor.PageFetched(r.offset, count, page.TotalCount)
		if count == 0 {
			return d.done(ctx, r, logger)
		}
		r.summary.Pages++
		r.summary.Fetched += count

		d.setState(StateTransforming)
		docs := d.transformPage(ctx, page, r, logger)

		d.setState(StateLoading)
		if err := d.load(ctx, docs, r, logger); err != nil {
			return d.abort(r, err)
		}

		r.offset += d.cfg.BatchSize
		d.saveCheckpoint(ctx, r, false, logger)

		if count < d.cfg.BatchSize {
			return d.done(ctx, r, logger)
		}
	}
}

// init checks the index, creates the schema when asked, and loads the
// checkpoint when resuming.
func (d *Driver) init(ctx context.Context, r *run, logger *slog.Logger) error {
	if err := d.index.Ping(ctx); err != nil {
		return fmt.Errorf("index unreachable: %w", err)
	}
	if d.cfg.CreateIndex {
		if err := d.index.EnsureSchema(ctx, d.cfg.IndexName); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	if !d.cfg.Resume || d.checkpoints == nil {
		return nil
	}

	cp, err := d.checkpoints.LoadCheckpoint(ctx, d.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	switch {
	case cp == nil:
		logger.Info("no checkpoint, starting from the beginning")
	case cp.Completed:
		logger.Info("previous run completed, starting from the beginning", "previous_run", cp.RunID)
	default:
		r.offset = cp.Offset
		r.baseFetched = cp.Fetched
		r.baseIndexed = cp.Indexed
		logger.Info("resuming from checkpoint", "previous_run", cp.RunID, "offset", cp.Offset)
	}
	r.summary.StartOffset = r.offset
	return nil
}

// transformed is the outcome for one record of a page.
type transformed struct {
	doc *core.IndexDocument
	err error
}

// transformPage embeds and maps every issue of a page on the worker pool.
// The returned documents keep fetch order; failed records are skipped.
func (d *Driver) transformPage(ctx context.Context, page *source.Page, r *run, logger *slog.Logger) []*core.IndexDocument {
	issues := page.Issues
	results := make([]transformed, len(issues))
	var wg sync.WaitGroup

	for i, issue := range issues {
		if recErr := page.RecordErr(i); recErr != nil {
			results[i] = transformed{err: recErr}
			continue
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			doc, err := d.buildDocument(ctx, issue)
			results[i] = transformed{doc: doc, err: err}
		}
		if err := d.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	docs := make([]*core.IndexDocument, 0, len(issues))
	for i, res := range results {
		if res.err != nil {
			id := recordID(page, i)
			logger.Warn("skipping record", "id", id, "offset", page.Offset+i, "err", res.err)
			r.summary.Skipped++
			d.monitor.RecordSkipped(id, res.err)
			continue
		}
		docs = append(docs, res.doc)
	}
	return docs
}

// recordID is the best known id of the record at position i.
func recordID(page *source.Page, i int) core.ID {
	if issue := page.Issues[i]; issue != nil {
		return issue.ID
	}
	if recErr := page.RecordErr(i); recErr != nil {
		return recErr.ID
	}
	return ""
}

// buildDocument embeds the search text of issue and maps it.
func (d *Driver) buildDocument(ctx context.Context, issue *core.Issue) (*core.IndexDocument, error) {
	if err := core.ValidateIssue(issue); err != nil {
		return nil, err
	}
	vector, err := d.embedder.EmbedText(ctx, transform.SearchText(issue))
	if err != nil {
		return nil, fmt.Errorf("%w: embedding: %w", core.ErrMapping, err)
	}
	if !d.cfg.IncludeEmbeddings {
		vector = nil
	}
	return transform.Map(issue, vector)
}

// load submits one batch. Only a rejected credential is returned; every
// other failure is counted and the run continues.
func (d *Driver) load(ctx context.Context, docs []*core.IndexDocument, r *run, logger *slog.Logger) error {
	if len(docs) == 0 {
		return nil
	}

	// A submitted batch completes even if the run is being cancelled.
	result, err := d.index.UpsertBatch(context.WithoutCancel(ctx), docs, d.cfg.IndexName)
	d.monitor.BatchLoaded(result, err)

	var partial *core.PartialBatchError
	switch {
	case err == nil:
		r.summary.Indexed += result.Indexed
	case errors.As(err, &partial) && result != nil:
		r.summary.Indexed += result.Indexed
		r.summary.Failed += len(partial.Failures)
		logger.Warn("documents rejected by index", "count", len(partial.Failures), "ids", partial.IDs())
	case core.IsAuth(err):
		return fmt.Errorf("load batch: %w", err)
	default:
		r.summary.Failed += len(docs)
		logger.Error("batch failed", "documents", len(docs), "offset", r.offset, "err", err)
	}
	return nil
}

func (d *Driver) saveCheckpoint(ctx context.Context, r *run, completed bool, logger *slog.Logger) {
	if d.checkpoints == nil {
		return
	}
	cp := &core.Checkpoint{
		Name:      d.cfg.IndexName,
		RunID:     r.summary.RunID,
		Offset:    r.offset,
		Fetched:   r.baseFetched + r.summary.Fetched,
		Indexed:   r.baseIndexed + r.summary.Indexed,
		Completed: completed,
	}
	if err := d.checkpoints.SaveCheckpoint(context.WithoutCancel(ctx), cp); err != nil {
		logger.Error("failed to save checkpoint", "err", err)
	}
}

func (d *Driver) done(ctx context.Context, r *run, logger *slog.Logger) *Summary {
	d.setState(StateDone)
	d.saveCheckpoint(ctx, r, true, logger)
	s := d.finish(r)
	logger.Info("run finished", "fetched", s.Fetched, "indexed", s.Indexed,
		"skipped", s.Skipped, "failed", s.Failed, "elapsed", s.Elapsed)
	return s
}

func (d *Driver) abort(r *run, err error) *Summary {
	d.setState(StateAborted)
	r.summary.Err = err
	s := d.finish(r)
	d.logger.Error("run aborted", "run", s.RunID, "fetched", s.Fetched, "indexed", s.Indexed, "err", err)
	return s
}

func (d *Driver) finish(r *run) *Summary {
	r.summary.State = d.state
	r.summary.Elapsed = time.Since(r.started)
	d.monitor.Finish(r.summary)
	return r.summary
}
