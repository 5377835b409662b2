// =============================================================================
// BBOX Fuel Dispense Analyzer - Transaction Reconstructor
// =============================================================================
//
// This module replays the LogEvents of ONE source through a per-column state
// machine and emits a DispensingEvent every time a transaction closes.
//
// STATE:
//   One ColumnState per column index, held in a dense array sized to the
//   largest column id in the source's partial catalog. Events are applied in
//   log order; the array is never re-sorted.
//
// TRANSITIONS:
//   Every single-column event kind is a pure function
//     Transition(ColumnState, LogEvent) -> (ColumnState, *DispensingEvent, *HoseAssignment, error)
//   and an order transfer is the two-column function Transfer(from, to).
//   Both are exported so each rule can be exercised without a log replay.
//
// EDGE-CASE POLICIES (kept exactly):
//   - duplicate "fueling started" before a close: the first start wins
//   - "end of transaction" with counter NAN: state dropped, no event
//   - close without start, without end, or with zero duration: no event
//   - negative counter delta: the counter wrapped at CounterModulus
//   - implausible rates are still emitted
//
// =============================================================================

package reconstruct

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/catalog"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/extract"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/types"
)

// CounterModulus is the range of a column's volume counter.
const CounterModulus = 1_000_000

// ErrColumnIndexOutOfRange is matched by *ReconstructionError via errors.Is.
var ErrColumnIndexOutOfRange = errors.New("column index out of range")

// ReconstructionError fails a whole source.
type ReconstructionError struct {
	// Column is the 1-based column id that was referenced.
	Column int
	// Size is the number of allocated column states.
	Size int
	Kind types.EventKind
	At   time.Time
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("%s event at %s references column %d, only %d allocated: %v",
		e.Kind, e.At.Format(time.DateTime), e.Column, e.Size, ErrColumnIndexOutOfRange)
}

func (e *ReconstructionError) Is(target error) bool {
	return target == ErrColumnIndexOutOfRange
}

// =============================================================================
// COLUMN STATE
// =============================================================================

// ColumnState is the in-flight transaction of one column.
type ColumnState struct {
	StartFuel float64
	EndFuel   float64

	// Start and End are zero when unset.
	Start time.Time
	End   time.Time

	// Hose is -1 when unset.
	Hose int

	FuelName string
}

// ZeroState is the state of an idle column.
func ZeroState() ColumnState {
	return ColumnState{Hose: -1}
}

// HoseAssignment records that a hose of a column dispensed a fuel.
type HoseAssignment struct {
	Hose int
	Fuel string
}

// Stats counts how transactions of a source closed.
type Stats struct {
	Emitted   int
	Aborted   int
	Unstarted int
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Transition applies one single-column event to st. The returned event is
// non-nil when a transaction closed successfully.
func Transition(st ColumnState, ev types.LogEvent) (ColumnState, *types.DispensingEvent, *HoseAssignment, error) {
	switch ev.Kind {
	case types.KindDoseSet, types.KindDoseConfigured:
		return doseTransition(st, ev)

	case types.KindFuelingStarted:
		if !st.Start.IsZero() {
			return st, nil, nil, nil
		}
		st.Start = ev.Timestamp
		return st, nil, nil, nil

	case types.KindFuelingEnded:
		st.End = ev.Timestamp
		return st, nil, nil, nil

	case types.KindTransactionEnded:
		return closeTransition(st, ev)

	default:
		return st, nil, nil, nil
	}
}

func doseTransition(st ColumnState, ev types.LogEvent) (ColumnState, *types.DispensingEvent, *HoseAssignment, error) {
	action := ev.RawAction

	if strings.Contains(action, extract.MarkerDoseConfigured) {
		if fuel, ok := extract.FieldValue(action, extract.FieldFuel); ok && fuel != "" {
			st.FuelName = fuel
		}
		return st, nil, nil, nil
	}

	if ev.Kind != types.KindDoseSet || !strings.Contains(action, extract.MarkerDoseSetup) {
		return st, nil, nil, nil
	}

	if raw, ok := extract.FieldValue(action, extract.FieldHose); ok {
		hose, err := strconv.Atoi(raw)
		if err != nil {
			return st, nil, nil, extract.Malformed(ev.Line, action, fmt.Errorf("hose number: %w", err))
		}
		st.Hose = hose
	}
	if raw, ok := extract.FieldValue(action, extract.FieldCounter); ok {
		v, err := extract.ParseDecimal(raw)
		if err != nil {
			return st, nil, nil, extract.Malformed(ev.Line, action, fmt.Errorf("start counter: %w", err))
		}
		st.StartFuel = v
	}

	var assign *HoseAssignment
	if st.FuelName != "" && st.Hose >= 0 {
		assign = &HoseAssignment{Hose: st.Hose, Fuel: st.FuelName}
	}
	return st, nil, assign, nil
}

// closeTransition handles "end of transaction". The returned state is
// always the zero state.
func closeTransition(st ColumnState, ev types.LogEvent) (ColumnState, *types.DispensingEvent, *HoseAssignment, error) {
	if raw, ok := extract.FieldValue(ev.RawAction, extract.FieldCounter); ok {
		if extract.IsNaNReading(raw) {
			return ZeroState(), nil, nil, nil
		}
		v, err := extract.ParseDecimal(raw)
		if err != nil {
			return st, nil, nil, extract.Malformed(ev.Line, ev.RawAction, fmt.Errorf("end counter: %w", err))
		}
		st.EndFuel = v
	}

	if st.Start.IsZero() || st.End.IsZero() || st.End.Equal(st.Start) {
		return ZeroState(), nil, nil, nil
	}

	volume := st.EndFuel - st.StartFuel
	if volume < 0 {
		volume = CounterModulus - st.StartFuel + st.EndFuel
	}

	out := &types.DispensingEvent{
		Date:    types.DateOf(st.End),
		Station: ev.Station,
		Column:  ev.Column + 1,
		Fuel:    st.FuelName,
		Hose:    st.Hose,
		Volume:  volume,
		Start:   st.Start,
		End:     st.End,
	}
	return ZeroState(), out, nil, nil
}

// Transfer moves an in-flight fuel order from one column to another. The
// destination takes the fuel name only; the source column is reset and its
// start time is discarded.
func Transfer(from, to ColumnState) (ColumnState, ColumnState) {
	to.FuelName = from.FuelName
	return ZeroState(), to
}

// =============================================================================
// REPLAY
// =============================================================================

// Result is the output of reconstructing one source.
type Result struct {
	Events []types.DispensingEvent
	Stats  Stats
}

// Reconstruct replays events against a column-state array sized from cat.
// Hose associations are recorded into cat. On error nothing is returned and
// the caller must discard cat as well.
func Reconstruct(events []types.LogEvent, cat *catalog.Partial) (*Result, error) {
	states := make([]ColumnState, cat.MaxColumn())
	for i := range states {
		states[i] = ZeroState()
	}

	res := &Result{}
	for _, ev := range events {
		if err := checkIndex(ev, ev.Column, len(states)); err != nil {
			return nil, err
		}

		if ev.Kind == types.KindOrderTransferred {
			if err := checkIndex(ev, ev.ToColumn, len(states)); err != nil {
				return nil, err
			}
			// The source is written last: a transfer onto itself resets.
			from, to := Transfer(states[ev.Column], states[ev.ToColumn])
			states[ev.ToColumn] = to
			states[ev.Column] = from
			continue
		}

		next, out, assign, err := Transition(states[ev.Column], ev)
		if err != nil {
			return nil, err
		}
		states[ev.Column] = next

		if assign != nil {
			cat.AddHoseFuel(ev.Station, ev.Column+1, assign.Hose, assign.Fuel)
		}
		if ev.Kind == types.KindTransactionEnded {
			switch {
			case out != nil:
				res.Events = append(res.Events, *out)
				res.Stats.Emitted++
			case isNaNClose(ev):
				res.Stats.Aborted++
			default:
				res.Stats.Unstarted++
			}
		}
	}
	return res, nil
}

func checkIndex(ev types.LogEvent, idx, size int) error {
	if idx < 0 || idx >= size {
		return &ReconstructionError{Column: idx + 1, Size: size, Kind: ev.Kind, At: ev.Timestamp}
	}
	return nil
}

func isNaNClose(ev types.LogEvent) bool {
	raw, ok := extract.FieldValue(ev.RawAction, extract.FieldCounter)
	return ok && extract.IsNaNReading(raw)
}
