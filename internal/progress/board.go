package progress

import (
	"sync/atomic"
	"time"
)

// RunState describes where the orchestrator currently is.
type RunState string

const (
	RunStateIdle    RunState = "idle"
	RunStateRunning RunState = "running"
	RunStateDone    RunState = "done"
)

// Snapshot is an immutable view of the current run, safe to hand to a
// dashboard thread. A new value is swapped in on every change; readers never
// observe partial updates.
type Snapshot struct {
	RunID          string    `json:"run_id"`
	State          RunState  `json:"state"`
	StartedAt      time.Time `json:"started_at"`
	CurrentRelease string    `json:"current_release,omitempty"`
	GroupIndex     int       `json:"group_index,omitempty"`
	GroupTotal     int       `json:"group_total,omitempty"`
	Percent        int       `json:"percent"`
	Processed      int       `json:"processed"`
	Failed         int       `json:"failed"`
	Skipped        int       `json:"skipped"`
}

// Board holds the latest Snapshot behind an atomic pointer. It implements
// Sink so the processing loop can feed it directly; any number of readers
// may call Current concurrently.
type Board struct {
	current atomic.Pointer[Snapshot]
}

// NewBoard returns a board in the idle state.
func NewBoard() *Board {
	b := &Board{}
	b.current.Store(&Snapshot{State: RunStateIdle})
	return b
}

// Current returns the latest snapshot. Callers must not mutate it.
func (b *Board) Current() *Snapshot {
	return b.current.Load()
}

// BeginRun resets counters and marks the run as started.
func (b *Board) BeginRun(runID string) {
	b.current.Store(&Snapshot{
		RunID:     runID,
		State:     RunStateRunning,
		StartedAt: time.Now(),
	})
}

// EndRun marks the run finished, keeping the final counters visible.
func (b *Board) EndRun() {
	b.swap(func(s *Snapshot) {
		s.State = RunStateDone
		s.CurrentRelease = ""
		s.Percent = 100
	})
}

// GroupProgress implements Sink.
func (b *Board) GroupProgress(release string, groupIndex, groupTotal, percent int) {
	b.swap(func(s *Snapshot) {
		s.CurrentRelease = release
		s.GroupIndex = groupIndex
		s.GroupTotal = groupTotal
		s.Percent = percent
	})
}

// GroupDone implements Sink.
func (b *Board) GroupDone(release string, groupIndex, groupTotal int, status Status) {
	b.swap(func(s *Snapshot) {
		s.CurrentRelease = release
		s.GroupIndex = groupIndex
		s.GroupTotal = groupTotal
		switch status {
		case StatusSuccess:
			s.Processed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	})
}

// swap copies the current snapshot, applies mutate and stores the copy.
// The single-writer assumption (one orchestrator instance) makes the
// read-copy-update race-free.
func (b *Board) swap(mutate func(*Snapshot)) {
	prev := b.current.Load()
	next := *prev
	mutate(&next)
	b.current.Store(&next)
}
