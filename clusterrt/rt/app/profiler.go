package app

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler collects CPU timings for named scopes and integer counters. It
// implements graph.Scopes, so the render graph opens one scope per pass.
type Profiler struct {
	Scopes     map[string]time.Duration
	Averages   map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string

	// Smoothing is the weight of a new sample in Averages, in (0, 1].
	Smoothing float64

	now func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		Averages:   make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		Order:      make([]string, 0),
		Smoothing:  0.1,
		now:        time.Now,
	}
}

// SetClock replaces time.Now, mostly for tests.
func (p *Profiler) SetClock(now func() time.Time) { p.now = now }

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = p.now()
	found := false
	for _, n := range p.Order {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		p.Order = append(p.Order, name)
	}
}

func (p *Profiler) EndScope(name string) {
	start, ok := p.StartTimes[name]
	if !ok {
		return
	}
	delete(p.StartTimes, name)
	d := p.now().Sub(start)
	p.Scopes[name] = d

	avg, seen := p.Averages[name]
	if !seen || p.Smoothing <= 0 || p.Smoothing >= 1 {
		p.Averages[name] = d
		return
	}
	p.Averages[name] = avg + time.Duration(float64(d-avg)*p.Smoothing)
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// Reset clears the last timings. Scope order and averages are kept.
func (p *Profiler) Reset() {
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
}

// Lines renders the smoothed timings in scope order, then the counters
// sorted by name.
func (p *Profiler) Lines() []string {
	lines := make([]string, 0, len(p.Order)+len(p.Counts))
	for _, name := range p.Order {
		ms := float64(p.Averages[name].Microseconds()) / 1000.0
		lines = append(lines, fmt.Sprintf("%-10s %6.2f ms", name, ms))
	}
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%-10s %6d", k, p.Counts[k]))
	}
	return lines
}

func (p *Profiler) String() string {
	var sb strings.Builder
	for _, l := range p.Lines() {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}
