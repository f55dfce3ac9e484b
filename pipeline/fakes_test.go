package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/issueindex/core"
	"github.com/poiesic/issueindex/source"
)

// fakeSource serves a fixed list of issues page by page.
type fakeSource struct {
	mu      sync.Mutex
	issues  []*core.Issue
	offsets []int
	limits  []int
	failAt  map[int]error
	// undecodable marks records, by absolute position, that arrive as decode failures.
	undecodable map[int]*source.RecordError
}

func newFakeSource(n int) *fakeSource {
	issues := make([]*core.Issue, n)
	for i := range issues {
		issues[i] = &core.Issue{
			ID:          core.ID(fmt.Sprint(i + 1)),
			Subject:     fmt.Sprintf("Issue %d", i+1),
			Description: "description",
			Project:     &core.Ref{ID: "1", Name: "Web"},
		}
	}
	return &fakeSource{issues: issues, failAt: map[int]error{}, undecodable: map[int]*source.RecordError{}}
}

func (f *fakeSource) FetchPage(ctx context.Context, limit, offset int, includeRelations bool) (*source.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.offsets = append(f.offsets, offset)
	f.limits = append(f.limits, limit)
	if err, ok := f.failAt[offset]; ok {
		return nil, err
	}
	page := &source.Page{TotalCount: len(f.issues), Offset: offset, Limit: limit}
	if offset < len(f.issues) {
		end := min(offset+limit, len(f.issues))
		page.Issues = append([]*core.Issue(nil), f.issues[offset:end]...)
		for i := range page.Issues {
			if recErr, ok := f.undecodable[offset+i]; ok {
				if page.RecordErrors == nil {
					page.RecordErrors = map[int]*source.RecordError{}
				}
				page.Issues[i] = nil
				page.RecordErrors[i] = recErr
			}
		}
	}
	return page, nil
}

func (f *fakeSource) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.offsets...)
}

// fakeIndex records every batch and can be told to fail.
type fakeIndex struct {
	mu        sync.Mutex
	pingErr   error
	schemaErr error
	schemas   []string
	batches   [][]*core.IndexDocument
	docs      map[core.ID]*core.IndexDocument
	// batchErr, when set, decides the outcome of each batch by its number (0-based).
	batchErr func(n int, docs []*core.IndexDocument) (*core.BulkResult, error)
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: map[core.ID]*core.IndexDocument{}}
}

func (f *fakeIndex) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeIndex) EnsureSchema(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemas = append(f.schemas, name)
	return f.schemaErr
}

func (f *fakeIndex) UpsertBatch(ctx context.Context, docs []*core.IndexDocument, name string) (*core.BulkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.batches)
	f.batches = append(f.batches, docs)
	if f.batchErr != nil {
		if result, err := f.batchErr(n, docs); err != nil || result != nil {
			if result != nil {
				failed := map[core.ID]bool{}
				for _, fl := range result.Failures {
					failed[fl.ID] = true
				}
				for _, d := range docs {
					if !failed[d.ID] {
						f.docs[d.ID] = d
					}
				}
			}
			return result, err
		}
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return &core.BulkResult{Submitted: len(docs), Indexed: len(docs)}, nil
}

func (f *fakeIndex) Close() error { return nil }

func (f *fakeIndex) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.batches))
	for i, b := range f.batches {
		sizes[i] = len(b)
	}
	return sizes
}

// recordingMonitor captures hook calls.
type recordingMonitor struct {
	noopMonitor
	states  []State
	skipped []core.ID
	onBatch func()
	summary *Summary
}

func (m *recordingMonitor) StateChanged(_, to State) { m.states = append(m.states, to) }
func (m *recordingMonitor) RecordSkipped(id core.ID, _ error) {
	m.skipped = append(m.skipped, id)
}
func (m *recordingMonitor) BatchLoaded(_ *core.BulkResult, _ error) {
	if m.onBatch != nil {
		m.onBatch()
	}
}
func (m *recordingMonitor) Finish(s *Summary) { m.summary = s }
