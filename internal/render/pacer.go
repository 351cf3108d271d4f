package render

import "time"

// TargetFPS is a named frame-rate target.
type TargetFPS int

const (
	Smooth     TargetFPS = 60
	Balanced   TargetFPS = 30
	PowerSaver TargetFPS = 15
)

// frameHistorySize is the length of the ring buffer adaptive mode samples
// to decide whether to shift the target up or down.
const frameHistorySize = 30

// minDwell is the minimum time between adaptive target adjustments, so a
// single slow or fast frame doesn't thrash the target back and forth.
const minDwell = 2 * time.Second

// Pacer tracks frame timing and decides when the next render should start,
// optionally adapting its target FPS to recent frame cost.
type Pacer struct {
	target       time.Duration
	adaptive     bool
	lastFrame    time.Time
	history      [frameHistorySize]time.Duration
	historyLen   int
	historyNext  int
	lastAdjusted time.Time
}

// NewPacer creates a pacer targeting fps, with adaptive mode optionally
// enabled.
func NewPacer(fps TargetFPS, adaptive bool) *Pacer {
	return &Pacer{
		target:   frameBudget(fps),
		adaptive: adaptive,
	}
}

func frameBudget(fps TargetFPS) time.Duration {
	if fps <= 0 {
		fps = Balanced
	}
	return time.Second / time.Duration(fps)
}

// ShouldRender reports whether enough time has elapsed since the last
// frame to start a new one at now, and if not, how long the caller should
// wait before checking again.
func (p *Pacer) ShouldRender(now time.Time) (shouldRender bool, timeUntilNext time.Duration) {
	if p.lastFrame.IsZero() {
		return true, 0
	}
	elapsed := now.Sub(p.lastFrame)
	if elapsed >= p.target {
		return true, 0
	}
	return false, p.target - elapsed
}

// RecordFrame registers that a frame completed at now, feeding the
// adaptive history and adjusting the target if warranted.
func (p *Pacer) RecordFrame(now time.Time) {
	if !p.lastFrame.IsZero() {
		cost := now.Sub(p.lastFrame)
		p.history[p.historyNext] = cost
		p.historyNext = (p.historyNext + 1) % frameHistorySize
		if p.historyLen < frameHistorySize {
			p.historyLen++
		}
	}
	p.lastFrame = now

	if p.adaptive {
		p.maybeAdjust(now)
	}
}

func (p *Pacer) maybeAdjust(now time.Time) {
	if p.historyLen < frameHistorySize {
		return
	}
	if !p.lastAdjusted.IsZero() && now.Sub(p.lastAdjusted) < minDwell {
		return
	}

	var total time.Duration
	for _, d := range p.history {
		total += d
	}
	avg := total / time.Duration(p.historyLen)

	switch {
	case avg > (p.target*150)/100:
		if next, ok := stepDown(p.target); ok {
			p.target = next
			p.lastAdjusted = now
		}
	case avg < (p.target*80)/100:
		if next, ok := stepUp(p.target); ok {
			p.target = next
			p.lastAdjusted = now
		}
	}
}

var steps = []time.Duration{frameBudget(Smooth), frameBudget(Balanced), frameBudget(PowerSaver)}

// stepDown moves to the next coarser (longer budget) step, i.e. a lower
// FPS target, since the pacer is running too hot for the current one.
func stepDown(current time.Duration) (time.Duration, bool) {
	for _, s := range steps {
		if s > current {
			return s, true
		}
	}
	return current, false
}

// stepUp moves to the next finer (shorter budget) step, i.e. a higher FPS
// target, since recent frames are comfortably under budget.
func stepUp(current time.Duration) (time.Duration, bool) {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i] < current {
			return steps[i], true
		}
	}
	return current, false
}

// TargetDuration returns the pacer's current per-frame budget.
func (p *Pacer) TargetDuration() time.Duration { return p.target }
