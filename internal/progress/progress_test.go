package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	percents []int
	done     []Status
}

func (r *recordingSink) GroupProgress(_ string, _, _, percent int) {
	r.percents = append(r.percents, percent)
}

func (r *recordingSink) GroupDone(_ string, _, _ int, status Status) {
	r.done = append(r.done, status)
}

func TestTracker(t *testing.T) {
	t.Run("clamps and stays monotonic", func(t *testing.T) {
		sink := &recordingSink{}
		tr := NewTracker(sink, "Some.Release", 1, 2)
		tr.Update(-5)
		tr.Update(10)
		tr.Update(7) // regression, dropped
		tr.Update(10)
		tr.Update(150)
		assert.Equal(t, []int{0, 10, 100}, sink.percents)
	})

	t.Run("done forwards terminal status", func(t *testing.T) {
		sink := &recordingSink{}
		tr := NewTracker(sink, "Some.Release", 1, 1)
		tr.Done(StatusFailed)
		assert.Equal(t, []Status{StatusFailed}, sink.done)
	})

	t.Run("nil sink is safe", func(t *testing.T) {
		tr := NewTracker(nil, "r", 1, 1)
		tr.Update(50)
		tr.Done(StatusSuccess)
	})
}

func TestBoard(t *testing.T) {
	b := NewBoard()
	assert.Equal(t, RunStateIdle, b.Current().State)

	b.BeginRun("run-1")
	assert.Equal(t, RunStateRunning, b.Current().State)
	assert.Equal(t, "run-1", b.Current().RunID)

	b.GroupProgress("Some.Release", 1, 3, 42)
	snap := b.Current()
	assert.Equal(t, "Some.Release", snap.CurrentRelease)
	assert.Equal(t, 42, snap.Percent)

	b.GroupDone("Some.Release", 1, 3, StatusSuccess)
	b.GroupDone("Some.Release", 2, 3, StatusFailed)
	b.GroupDone("Some.Release", 3, 3, StatusSkipped)
	snap = b.Current()
	assert.Equal(t, 1, snap.Processed)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Skipped)

	// Snapshots are immutable values; an old pointer keeps its counters.
	old := b.Current()
	b.GroupDone("Some.Release", 3, 3, StatusSuccess)
	assert.Equal(t, 1, old.Processed)
	assert.Equal(t, 2, b.Current().Processed)

	b.EndRun()
	assert.Equal(t, RunStateDone, b.Current().State)
	assert.Equal(t, 100, b.Current().Percent)
}
