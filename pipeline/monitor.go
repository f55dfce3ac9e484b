package pipeline

import (
	"github.com/poiesic/issueindex/core"
)

// Monitor provides hooks to observe a pipeline run.
// All hooks are called from the goroutine running the pipeline.
type Monitor interface {
	Start(runID string, offset int)
	StateChanged(from, to State)
	PageFetched(offset, count, total int)
	RecordSkipped(id core.ID, err error)
	BatchLoaded(result *core.BulkResult, err error)
	Finish(summary *Summary)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)                   {}
func (n *noopMonitor) StateChanged(_, _ State)                 {}
func (n *noopMonitor) PageFetched(_, _, _ int)                 {}
func (n *noopMonitor) RecordSkipped(_ core.ID, _ error)        {}
func (n *noopMonitor) BatchLoaded(_ *core.BulkResult, _ error) {}
func (n *noopMonitor) Finish(_ *Summary)                       {}
