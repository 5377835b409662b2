// =============================================================================
// BBOX Fuel Dispense Analyzer - Rate Series
// =============================================================================
//
// This module buckets DispensingEvents by (date, column, fuel) and answers
// rate queries over them.
//
// LAYOUT:
//   date -> column -> fuel -> Bucket{Volumes, Intervals}
//
//   Volumes[i] and Intervals[i] always describe the same event. Buckets are
//   created lazily on first Add, so a fuel name that first appears late
//   never discards buckets that already exist.
//
// RATES:
//   rate = volume / duration-in-minutes. Zero-duration intervals are never
//   queried; negative durations are kept and yield negative rates.
//
// =============================================================================

package series

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/types"
)

// Interval is the time span of one transaction.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Bucket holds the events of one (date, column, fuel) key.
type Bucket struct {
	Volumes   []float64
	Intervals []Interval
}

// Len returns the number of events in the bucket.
func (b *Bucket) Len() int { return len(b.Volumes) }

// RatePoint is one queried transaction.
type RatePoint struct {
	Start    time.Time
	Duration time.Duration
	// Rate is volume per minute.
	Rate float64
}

// Row is one bucketed event in report order.
type Row struct {
	Date     types.Date
	Column   int
	Fuel     string
	Volume   float64
	Start    time.Time
	End      time.Time
	Duration time.Duration
	// Rate is volume per minute, zero when Duration is zero.
	Rate float64
}

// Series is the rate series. The zero value is not usable; call New.
type Series struct {
	byDate map[types.Date]map[int]map[string]*Bucket
	count  int
}

// New returns an empty series.
func New() *Series {
	return &Series{byDate: make(map[types.Date]map[int]map[string]*Bucket)}
}

// Add appends ev to its bucket.
func (s *Series) Add(ev types.DispensingEvent) {
	columns, ok := s.byDate[ev.Date]
	if !ok {
		columns = make(map[int]map[string]*Bucket)
		s.byDate[ev.Date] = columns
	}
	fuels, ok := columns[ev.Column]
	if !ok {
		fuels = make(map[string]*Bucket)
		columns[ev.Column] = fuels
	}
	b, ok := fuels[ev.Fuel]
	if !ok {
		b = &Bucket{}
		fuels[ev.Fuel] = b
	}
	b.Volumes = append(b.Volumes, ev.Volume)
	b.Intervals = append(b.Intervals, Interval{Start: ev.Start, End: ev.End})
	s.count++
}

// Len returns the total number of events added.
func (s *Series) Len() int { return s.count }

// Bucket returns the bucket of a key, or nil.
func (s *Series) Bucket(date types.Date, column int, fuel string) *Bucket {
	return s.byDate[date][column][fuel]
}

// Dates returns every date with at least one event, ascending.
func (s *Series) Dates() []types.Date {
	dates := slices.Collect(maps.Keys(s.byDate))
	slices.SortFunc(dates, compareDates)
	return dates
}

// ObservedRange returns the earliest and latest dates with events. ok is
// false when the series is empty.
func (s *Series) ObservedRange() (first, last types.Date, ok bool) {
	dates := s.Dates()
	if len(dates) == 0 {
		return types.Date{}, types.Date{}, false
	}
	return dates[0], dates[len(dates)-1], true
}

// Query returns the rate points of one column and fuel within r, in date
// order and emission order within a date. Zero-duration intervals are
// skipped.
func (s *Series) Query(column int, fuel string, r types.DateRange) []RatePoint {
	var out []RatePoint
	for _, d := range s.Dates() {
		if !r.Contains(d) {
			continue
		}
		b := s.Bucket(d, column, fuel)
		if b == nil {
			continue
		}
		for i, iv := range b.Intervals {
			dur := iv.Duration()
			if dur == 0 {
				continue
			}
			out = append(out, RatePoint{
				Start:    iv.Start,
				Duration: dur,
				Rate:     Rate(b.Volumes[i], dur),
			})
		}
	}
	return out
}

// MeanRate returns the arithmetic mean of Query's rates. ok is false when
// the query is empty.
func (s *Series) MeanRate(column int, fuel string, r types.DateRange) (mean float64, ok bool) {
	points := s.Query(column, fuel, r)
	if len(points) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range points {
		sum += p.Rate
	}
	return sum / float64(len(points)), true
}

// Rows flattens the series ordered by date, column and fuel, then emission
// order.
func (s *Series) Rows() []Row {
	out := make([]Row, 0, s.count)
	for _, d := range s.Dates() {
		columns := s.byDate[d]
		for _, c := range slices.Sorted(maps.Keys(columns)) {
			fuels := columns[c]
			for _, f := range slices.Sorted(maps.Keys(fuels)) {
				b := fuels[f]
				for i, iv := range b.Intervals {
					dur := iv.Duration()
					row := Row{
						Date:     d,
						Column:   c,
						Fuel:     f,
						Volume:   b.Volumes[i],
						Start:    iv.Start,
						End:      iv.End,
						Duration: dur,
					}
					if dur != 0 {
						row.Rate = Rate(row.Volume, dur)
					}
					out = append(out, row)
				}
			}
		}
	}
	return out
}

// Rate returns volume per minute of d.
func Rate(volume float64, d time.Duration) float64 {
	return volume / d.Minutes()
}

func compareDates(a, b types.Date) int {
	return cmp.Or(
		cmp.Compare(a.Year, b.Year),
		cmp.Compare(a.Month, b.Month),
		cmp.Compare(a.Day, b.Day),
	)
}
