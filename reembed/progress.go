package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker prints a running count of re-embedded chunks on one line,
// redrawn with a carriage return. It ignores updates until Start.
type ProgressTracker struct {
	mu      sync.Mutex
	out     io.Writer
	total   int
	every   int
	done    int
	printed int
	began   time.Time
}

// NewProgressTracker redraws after every `every` chunks; non-positive means
// after each update.
func NewProgressTracker(out io.Writer, total, every int) *ProgressTracker {
	return &ProgressTracker{out: out, total: total, every: max(every, 1)}
}

// Start zeroes the count and starts the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.began = time.Now()
	p.done, p.printed = 0, 0
}

// Add records n finished chunks, never counting past the total.
func (p *ProgressTracker) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.began.IsZero() {
		return
	}
	p.done = min(p.done+n, p.total)
	if p.done-p.printed >= p.every {
		p.draw()
		p.printed = p.done
	}
}

func (p *ProgressTracker) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish draws the final state and ends the line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.began.IsZero() {
		return
	}
	p.draw()
	fmt.Fprintln(p.out)
}

// Elapsed is zero before Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.began.IsZero() {
		return 0
	}
	return time.Since(p.began)
}

// draw requires p.mu.
func (p *ProgressTracker) draw() {
	var pct, perSec float64
	if p.total > 0 {
		pct = 100 * float64(p.done) / float64(p.total)
	}
	if secs := time.Since(p.began).Seconds(); secs > 0 {
		perSec = float64(p.done) / secs
	}
	fmt.Fprintf(p.out, "\rRe-embedded %d/%d chunks (%.1f%%) at %.1f chunks/s", p.done, p.total, pct, perSec)
}
