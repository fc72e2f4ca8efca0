package view

import (
	"math"
	"sync"
	"time"
)

// Stage names used by the dashboard.
const (
	StageCredentials   = "credentials"
	StageCourses       = "courses"
	StageAssignments   = "assignments"
	StageAnnouncements = "announcements"
	StageProcessing    = "processing"
)

type SectionTiming struct {
	TimeMs     int64   `json:"timeMs"`
	Percentage float64 `json:"percentage"`
}

type Timing struct {
	TotalTimeMs int64                    `json:"totalTimeMs"`
	Sections    map[string]SectionTiming `json:"sections"`
}

// Timer measures named stages. It is safe for concurrent use and only
// observes: nothing reads it to make decisions.
type Timer struct {
	mu       sync.Mutex
	now      func() time.Time
	start    time.Time
	sections map[string]time.Duration
}

// NewTimer starts the clock. now may be nil.
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now, start: now(), sections: map[string]time.Duration{}}
}

// Start begins a section; call the returned func to stop it. Stopping the
// same name twice adds up.
func (t *Timer) Start(name string) func() {
	begin := t.now()
	return func() {
		t.Record(name, t.now().Sub(begin))
	}
}

func (t *Timer) Record(name string, d time.Duration) {
	t.mu.Lock()
	t.sections[name] += d
	t.mu.Unlock()
}

// Timing snapshots the breakdown. Percentages are of the wall-clock total,
// rounded to one decimal; concurrent sections can add up to more than 100.
func (t *Timer) Timing() Timing {
	if t == nil {
		return Timing{Sections: map[string]SectionTiming{}}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	total := t.now().Sub(t.start)
	out := Timing{TotalTimeMs: total.Milliseconds(), Sections: make(map[string]SectionTiming, len(t.sections))}
	for name, d := range t.sections {
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(d)/float64(total)*1000) / 10
		}
		out.Sections[name] = SectionTiming{TimeMs: d.Milliseconds(), Percentage: pct}
	}
	return out
}
