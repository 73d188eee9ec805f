package graph

// InputEvent is one mapped value headed for a node's input accumulator.
type InputEvent struct {
	Run         *RunRef
	TargetField string
	IsArray     bool
	Value       any
}

// Accumulator folds the per-target-field event stream for one run into a
// single input record. A graph node keeps one accumulator per run, shared by
// all of its target fields.
type Accumulator struct {
	Run   *RunRef
	Input map[string]any
	Count int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{Input: make(map[string]any)}
}

// Reduce folds one input event into the accumulator.
//
//   - Entries with a nil value are dropped and do not count toward input
//     completeness.
//   - A run id mismatch between the accumulator and the event is a protocol
//     violation.
//   - A second arrival of a scalar target field is a protocol violation.
//   - Array target fields append.
//
// Count increments on every accepted entry. The accumulator's run, once set,
// is stable for its lifetime.
func (a *Accumulator) Reduce(ev InputEvent) error {
	if ev.Value == nil {
		return nil
	}

	if a.Run != nil && ev.Run != nil && a.Run.ID != ev.Run.ID {
		return &ProtocolViolationError{
			Reason: "mismatched run ids in input reducer",
			Run:    a.Run.ID,
			Field:  ev.TargetField,
		}
	}
	if a.Run == nil {
		a.Run = ev.Run
	}

	existing, present := a.Input[ev.TargetField]
	switch {
	case !present:
		if ev.IsArray {
			a.Input[ev.TargetField] = []any{ev.Value}
		} else {
			a.Input[ev.TargetField] = ev.Value
		}
	case !ev.IsArray:
		runID := ""
		if a.Run != nil {
			runID = a.Run.ID
		}
		return &ProtocolViolationError{
			Reason: "duplicate value for scalar input field",
			Run:    runID,
			Field:  ev.TargetField,
		}
	default:
		arr, _ := existing.([]any)
		a.Input[ev.TargetField] = append(arr, ev.Value)
	}

	a.Count++
	return nil
}
