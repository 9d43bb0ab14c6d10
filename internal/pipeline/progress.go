package pipeline

type StageState string

const (
	StateCompleted StageState = "completed"
	StateCurrent   StageState = "current"
	StatePending   StageState = "pending"
	// StateHalted marks the stage an order was at when it got cancelled.
	StateHalted StageState = "halted"
)

type StageProgress struct {
	Key     StageKey
	Ordinal int
	State   StageState
}

type Progress struct {
	Current   StageKey
	Cancelled bool
	Stages    []StageProgress
	Percent   float64
}

// ComputeProgress derives the timeline from a raw status. A cancelled order
// with no known halt point shows nothing completed.
func ComputeProgress(raw string) Progress {
	return ComputeProgressFrom(raw, "")
}

// ComputeProgressFrom is ComputeProgress with the stage the order held when it
// was cancelled (taken from the audit trail). haltedAt is ignored for orders
// that are not cancelled.
func ComputeProgressFrom(raw string, haltedAt StageKey) Progress {
	current := Normalize(raw)
	if current == Cancelled {
		return cancelledProgress(StageIndex(haltedAt))
	}

	cur := StageIndex(current)
	if cur < 0 {
		return Progress{Current: linear[0].Key, Stages: timeline(0, StateCurrent), Percent: 0}
	}

	return Progress{
		Current: current,
		Stages:  timeline(cur, StateCurrent),
		Percent: percent(cur),
	}
}

func cancelledProgress(halt int) Progress {
	p := Progress{Current: Cancelled, Cancelled: true}
	if halt < 0 {
		p.Stages = timeline(-1, StatePending)
		return p
	}
	p.Stages = timeline(halt, StateHalted)
	p.Percent = percent(halt)
	return p
}

// timeline marks everything before pos completed, pos itself with at,
// and the rest pending. pos < 0 leaves every stage pending.
func timeline(pos int, at StageState) []StageProgress {
	out := make([]StageProgress, 0, len(linear))
	for _, s := range linear {
		st := StatePending
		switch {
		case pos < 0:
		case s.Ordinal < pos:
			st = StateCompleted
		case s.Ordinal == pos:
			st = at
		}
		out = append(out, StageProgress{Key: s.Key, Ordinal: s.Ordinal, State: st})
	}
	return out
}

func percent(completed int) float64 {
	den := len(linear) - 1
	if den <= 0 {
		return 0
	}
	p := float64(completed) / float64(den) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
