package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/issueindex/core"
)

// ProgressMonitor writes one progress line per loaded page and a final
// summary line.
type ProgressMonitor struct {
	writer    io.Writer
	total     int
	fetched   int
	indexed   int
	skipped   int
	failed    int
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

var _ Monitor = (*ProgressMonitor)(nil)

// NewProgressMonitor creates a monitor writing to writer (typically os.Stderr).
func NewProgressMonitor(writer io.Writer) *ProgressMonitor {
	return &ProgressMonitor{writer: writer}
}

// Start begins tracking progress.
func (p *ProgressMonitor) Start(runID string, offset int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.fetched, p.indexed, p.skipped, p.failed = 0, 0, 0, 0
	if offset > 0 {
		fmt.Fprintf(p.writer, "Run %s resuming at offset %d\n", runID, offset)
	} else {
		fmt.Fprintf(p.writer, "Run %s started\n", runID)
	}
}

func (p *ProgressMonitor) StateChanged(_, _ State) {}

// PageFetched records the page and the upstream total, when known.
func (p *ProgressMonitor) PageFetched(offset, count, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fetched += count
	if total > 0 {
		p.total = total
	}
}

// RecordSkipped counts a record that could not be mapped.
func (p *ProgressMonitor) RecordSkipped(_ core.ID, _ error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipped++
}

// BatchLoaded counts the outcome of a bulk call and reports progress.
func (p *ProgressMonitor) BatchLoaded(result *core.BulkResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	if result != nil {
		p.indexed += result.Indexed
		p.failed += len(result.Failures)
	}
	p.report()
}

// Finish prints the final summary.
func (p *ProgressMonitor) Finish(summary *Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	fmt.Fprintln(p.writer)
	fmt.Fprintln(p.writer, summary.String())
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressMonitor) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressMonitor) report() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.fetched) / elapsed.Seconds()
	}

	if p.total > 0 {
		percentage := min(100.0, float64(p.fetched)/float64(p.total)*100.0)
		fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) indexed=%d skipped=%d failed=%d - %.1f records/s",
			p.fetched, p.total, percentage, p.indexed, p.skipped, p.failed, rate)
		return
	}
	fmt.Fprintf(p.writer, "\rProgress: %d fetched, indexed=%d skipped=%d failed=%d - %.1f records/s",
		p.fetched, p.indexed, p.skipped, p.failed, rate)
}
