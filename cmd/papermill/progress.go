package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/papermill/jobs"
)

// progressTracker renders job status snapshots on a single terminal line.
type progressTracker struct {
	writer    io.Writer
	startTime time.Time
	started   bool
	lastLine  string
	mu        sync.Mutex
}

func newProgressTracker(writer io.Writer) *progressTracker {
	return &progressTracker{writer: writer}
}

func (p *progressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.lastLine = ""
}

// Update redraws the line if the snapshot changed anything visible.
func (p *progressTracker) Update(st *jobs.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	line := p.format(st)
	if line == p.lastLine {
		return
	}
	p.lastLine = line
	fmt.Fprintf(p.writer, "\r%s", line)
}

// Finish prints the final state and ends the line.
func (p *progressTracker) Finish(st *jobs.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	fmt.Fprintf(p.writer, "\r%s\n", p.format(st))
	p.started = false
}

func (p *progressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// format must be called with the lock held.
func (p *progressTracker) format(st *jobs.Status) string {
	done, total, unit := progressOf(st)
	rate := 0.0
	if elapsed := time.Since(p.startTime).Seconds(); elapsed > 0 {
		rate = float64(done) / elapsed
	}
	percentage := 0.0
	if total > 0 {
		percentage = float64(done) / float64(total) * 100.0
	}
	return fmt.Sprintf("Progress: %d/%d %s (%.1f%%) - %.1f %s/s - %s",
		done, total, unit, percentage, rate, unit, st.LastMessage)
}

// progressOf picks the counters that measure completion for a job kind.
func progressOf(st *jobs.Status) (done, total int, unit string) {
	switch st.Kind {
	case jobs.KindSegmentation:
		return st.Counter("processed_documents"), st.Counter("total_documents"), "documents"
	case jobs.KindEmbedding:
		return st.Counter("embedded") + st.Counter("skipped"), st.Counter("total_segments"), "segments"
	case jobs.KindSummarization:
		return st.Counter("processed") + st.Counter("errors") + st.Counter("skipped"), st.Counter("total_documents"), "documents"
	default:
		return 0, 0, "items"
	}
}
