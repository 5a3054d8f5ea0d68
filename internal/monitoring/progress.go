package monitoring

import (
	"sync"
	"time"

	"github.com/banshee-data/climategrid/internal/timeutil"
)

// Progress logs completion of a long batch run. Report may be called from
// several goroutines; a line is emitted at most once per StepPercent and
// always on completion.
type Progress struct {
	mu          sync.Mutex
	label       string
	total       int
	start       time.Time
	logged      bool
	lastPercent float64

	// StepPercent is the minimum advance between two log lines.
	StepPercent float64
	Clock       timeutil.Clock
}

// NewProgress starts a reporter for total items.
func NewProgress(label string, total int) *Progress {
	return NewProgressWithClock(label, total, timeutil.RealClock{})
}

// NewProgressWithClock is NewProgress with elapsed time read from clock.
func NewProgressWithClock(label string, total int, clock timeutil.Clock) *Progress {
	return &Progress{
		label:       label,
		total:       total,
		start:       clock.Now(),
		StepPercent: 10,
		Clock:       clock,
	}
}

// Report records that done of total items are finished. It returns true
// when a line was logged.
func (p *Progress) Report(done, total int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if total <= 0 {
		return false
	}
	pct := 100 * float64(done) / float64(total)
	if p.logged && (pct <= p.lastPercent || (done < total && pct < p.lastPercent+p.StepPercent)) {
		return false
	}
	p.logged = true
	p.lastPercent = pct
	elapsed := p.Clock.Since(p.start).Round(time.Millisecond)
	Logf("%s: %d/%d (%.1f%%) in %s", p.label, done, total, pct, elapsed)
	return true
}
