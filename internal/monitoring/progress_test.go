package monitoring

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/climategrid/internal/timeutil"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	var mu sync.Mutex
	lines := &[]string{}
	prev := Logf
	SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		*lines = append(*lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { Logf = prev })
	return lines
}

func TestProgress_ReportSteps(t *testing.T) {
	lines := captureLogs(t)

	clock := timeutil.NewMockClock(time.Unix(0, 0))
	p := NewProgressWithClock("interpolating", 100, clock)
	clock.Advance(2 * time.Second)

	logged := 0
	for done := 1; done <= 100; done++ {
		if p.Report(done, 100) {
			logged++
		}
	}
	// 1%, 11%, 21% ... 91%, 100%
	if logged != 11 {
		t.Errorf("logged %d lines, want 11: %v", logged, *lines)
	}
	last := (*lines)[len(*lines)-1]
	if want := "interpolating: 100/100 (100.0%) in 2s"; last != want {
		t.Errorf("last line = %q, want %q", last, want)
	}
}

func TestProgress_FinalAlwaysLogged(t *testing.T) {
	captureLogs(t)

	p := NewProgress("x", 10)
	p.StepPercent = 100
	if !p.Report(3, 10) {
		t.Error("first report should log")
	}
	if p.Report(5, 10) {
		t.Error("report within step should not log")
	}
	if !p.Report(10, 10) {
		t.Error("completion should always log")
	}
	if p.Report(10, 10) {
		t.Error("duplicate completion should not log")
	}
}

func TestProgress_ZeroTotal(t *testing.T) {
	captureLogs(t)
	if NewProgress("empty", 0).Report(0, 0) {
		t.Error("zero total should not log")
	}
}

func TestSetLoggerNil(t *testing.T) {
	prev := Logf
	t.Cleanup(func() { Logf = prev })
	SetLogger(nil)
	Logf("muted %d", 1)
}
