// Package progress carries per-release extraction progress from the
// processing loop to external consumers (CLI output, dashboard). The core
// never knows how progress is displayed or persisted.
package progress

// Status is the terminal state of one archive group.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Sink receives progress events. Implementations must be safe for use from
// the single processing goroutine; they must never block for long since
// extraction percent updates arrive at stdout-line rate.
type Sink interface {
	// GroupProgress reports percent complete (0-100) for a group.
	GroupProgress(release string, groupIndex, groupTotal, percent int)
	// GroupDone reports the terminal status of a group.
	GroupDone(release string, groupIndex, groupTotal int, status Status)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) GroupProgress(string, int, int, int) {}
func (NopSink) GroupDone(string, int, int, Status)  {}

// Tracker encapsulates progress updates for a single archive group.
// Reported percentages are clamped to 0-100 and monotonically
// non-decreasing, regardless of what the archiver's output claims.
type Tracker struct {
	sink    Sink
	release string
	index   int
	total   int
	last    int
}

// NewTracker creates a tracker for group index (1-based) of total within a
// release. A nil sink yields a tracker that swallows updates.
func NewTracker(sink Sink, release string, index, total int) *Tracker {
	if sink == nil {
		sink = NopSink{}
	}
	return &Tracker{
		sink:    sink,
		release: release,
		index:   index,
		total:   total,
		last:    -1,
	}
}

// Update reports a new completion percentage. Values below the last reported
// percent are dropped so consumers always see a non-decreasing sequence.
func (t *Tracker) Update(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent <= t.last {
		return
	}
	t.last = percent
	t.sink.GroupProgress(t.release, t.index, t.total, percent)
}

// Done reports the terminal status for this group.
func (t *Tracker) Done(status Status) {
	t.sink.GroupDone(t.release, t.index, t.total, status)
}
