package render

import (
	"testing"
	"time"
)

func TestPacerFirstCallAlwaysRenders(t *testing.T) {
	p := NewPacer(Smooth, false)
	should, _ := p.ShouldRender(time.Now())
	if !should {
		t.Fatalf("expected first call to always render")
	}
}

func TestPacerWaitsForBudget(t *testing.T) {
	p := NewPacer(Balanced, false)
	start := time.Now()
	p.RecordFrame(start)

	should, wait := p.ShouldRender(start.Add(1 * time.Millisecond))
	if should {
		t.Fatalf("expected not to render 1ms after a 33ms-budget frame")
	}
	if wait <= 0 {
		t.Fatalf("expected positive wait, got %v", wait)
	}

	should, _ = p.ShouldRender(start.Add(p.TargetDuration() + time.Millisecond))
	if !should {
		t.Fatalf("expected to render once budget elapsed")
	}
}

func TestPacerAdaptiveStepsDownUnderSustainedSlowFrames(t *testing.T) {
	p := NewPacer(Smooth, true)
	t0 := time.Now()
	initial := p.TargetDuration()

	cur := t0
	for i := 0; i < frameHistorySize+1; i++ {
		cur = cur.Add(initial * 2) // consistently over budget
		p.RecordFrame(cur)
	}

	if p.TargetDuration() <= initial {
		t.Fatalf("expected target to step down (coarser budget) under sustained slow frames, got %v (was %v)", p.TargetDuration(), initial)
	}
}

func TestPacerAdaptiveRespectsMinDwell(t *testing.T) {
	p := NewPacer(PowerSaver, true)

	cur := time.Now()
	for i := 0; i < frameHistorySize+1; i++ {
		cur = cur.Add(time.Millisecond) // consistently well under budget
		p.RecordFrame(cur)
	}
	afterFirstAdjust := p.TargetDuration()
	lastAdjustedAt := p.lastAdjusted

	// Feed one more fast frame a moment later; minDwell should block a
	// second adjustment this soon after the first.
	cur = cur.Add(time.Millisecond)
	p.RecordFrame(cur)
	if p.lastAdjusted != lastAdjustedAt {
		t.Fatalf("expected no further adjustment within the dwell window, target=%v", afterFirstAdjust)
	}
}
