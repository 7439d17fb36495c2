package cloth

import "time"

// Profiler categories, one per pipeline phase.
type profileCategory int

const (
	catBroadPhase profileCategory = iota
	catAerodynamics
	catIntegration
	catInteraction
	catNarrowPhase
	catConstraints
	catNormals
	numCategories
)

var categoryNames = [numCategories]string{
	"broad_phase",
	"aerodynamics",
	"integration",
	"interaction",
	"narrow_phase",
	"constraints",
	"normals",
}

// TimingStats accumulates wall-clock timings for one pipeline phase.
// Avg is an exponential moving average so it tracks recent frames.
type TimingStats struct {
	Total time.Duration
	Count int64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	Last  time.Duration
}

func (t *TimingStats) record(d time.Duration) {
	t.Total += d
	t.Count++
	t.Last = d
	if t.Count == 1 || d < t.Min {
		t.Min = d
	}
	if d > t.Max {
		t.Max = d
	}
	if t.Count == 1 {
		t.Avg = d
	} else {
		// EMA with alpha = 0.1
		t.Avg = time.Duration(float64(t.Avg)*0.9 + float64(d)*0.1)
	}
}

// profiler times the phases of each step. Owned by one engine, not
// goroutine-safe, and cheap enough to stay always on.
type profiler struct {
	stats   [numCategories]TimingStats
	started [numCategories]time.Time
}

func (p *profiler) start(c profileCategory) {
	p.started[c] = time.Now()
}

func (p *profiler) end(c profileCategory) {
	p.stats[c].record(time.Since(p.started[c]))
}

// Stats returns a snapshot of the per-phase timing statistics.
func (p *profiler) Stats() map[string]TimingStats {
	out := make(map[string]TimingStats, numCategories)
	for c := profileCategory(0); c < numCategories; c++ {
		out[categoryNames[c]] = p.stats[c]
	}
	return out
}
