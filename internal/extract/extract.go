// =============================================================================
// BBOX Fuel Dispense Analyzer - Event Extractor
// =============================================================================
//
// This module turns the ROW records of one BBOX source into an ordered list
// of typed LogEvents and a partial catalog.
//
// ROUTING:
//   The action grammar has no formal schema. Records are classified by an
//   ordered table of (predicate, extractor) rules and the FIRST matching rule
//   wins:
//
//   | # | Predicate                                  | Emits             |
//   |---|--------------------------------------------|-------------------|
//   | 1 | starts with "ТРК : "                       | DoseSet / Fueling*|
//   |   |                                            | / TransactionEnded|
//   | 2 | "Тр: " + "Топливный заказ перемещен"       | OrderTransferred  |
//   | 3 | "Тр: " + "Доза установлена"                | DoseConfigured    |
//   | 4 | "Тр: " + "Налив зафиксирован"              | catalog only      |
//   | - | anything else                              | dropped           |
//
//   Only enough is parsed to route. The raw action is kept on every event so
//   the reconstructor can pull counters, hoses and fuel names itself.
//
// FAILURES:
//   A bad DATETIME or a routed action missing a required field fails the
//   whole source with a *ParseError. The partial catalog built so far is
//   discarded with it.
//
// =============================================================================

package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/catalog"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/types"
)

// Result is the output of extracting one source.
type Result struct {
	Events  []types.LogEvent
	Catalog *catalog.Partial
	Stats   Stats
}

// Stats counts how the records of a source were routed.
type Stats struct {
	Records     int
	Routed      int
	CatalogOnly int
	Dropped     int
}

// extraction is the mutable state of a single Extract call.
type extraction struct {
	events  []types.LogEvent
	catalog *catalog.Partial
	stats   Stats
}

// rule is one row of the routing table.
type rule struct {
	name  string
	match func(action string) bool
	apply func(x *extraction, rec types.Record, station string) error
}

// columnSubKinds resolves the kind of a "ТРК : " action, in priority order.
var columnSubKinds = []struct {
	marker string
	kind   types.EventKind
}{
	{MarkerDoseConfigured, types.KindDoseSet},
	{MarkerDoseSetup, types.KindDoseSet},
	{MarkerFuelingStarted, types.KindFuelingStarted},
	{MarkerFuelingEnded, types.KindFuelingEnded},
	{MarkerTransactionEnd, types.KindTransactionEnded},
}

func transactionAction(marker string) func(string) bool {
	return func(action string) bool {
		return strings.HasPrefix(action, PrefixTransactionAction) && strings.Contains(action, marker)
	}
}

var rules = []rule{
	{
		name:  "column action",
		match: func(action string) bool { return strings.HasPrefix(action, PrefixColumnAction) },
		apply: applyColumnAction,
	},
	{
		name:  "order transferred",
		match: transactionAction(MarkerOrderTransferred),
		apply: applyOrderTransferred,
	},
	{
		name:  "dose configured",
		match: transactionAction(MarkerDoseConfigured),
		apply: applyDoseConfigured,
	},
	{
		name:  "fill recorded",
		match: transactionAction(MarkerFillRecorded),
		apply: applyFillRecorded,
	},
}

// =============================================================================
// EXTRACTION
// =============================================================================

// Extract routes every record of one source. Records must be in file order.
func Extract(records []types.Record) (*Result, error) {
	x := &extraction{catalog: catalog.NewPartial()}

	for _, rec := range records {
		x.stats.Records++

		station := StationOf(rec.Host)
		if station != "" {
			x.catalog.AddStation(station)
		}

		routed := false
		for _, r := range rules {
			if !r.match(rec.Action) {
				continue
			}
			if err := r.apply(x, rec, station); err != nil {
				return nil, err
			}
			routed = true
			break
		}
		if !routed {
			x.stats.Dropped++
		}
	}

	return &Result{Events: x.events, Catalog: x.catalog, Stats: x.stats}, nil
}

// StationOf derives the station identifier from a host by cutting it at the
// first '-'. A host without '-' is used whole.
func StationOf(host string) string {
	if i := strings.IndexByte(host, '-'); i >= 0 {
		host = host[:i]
	}
	return strings.TrimSpace(host)
}

func (x *extraction) emit(rec types.Record, ev types.LogEvent) error {
	ts, err := ParseTimestamp(rec.DateTime)
	if err != nil {
		return &ParseError{Kind: BadTimestamp, Line: rec.Line, Raw: rec.DateTime, Err: err}
	}
	ev.Timestamp = ts
	ev.RawAction = rec.Action
	ev.Line = rec.Line
	x.events = append(x.events, ev)
	x.stats.Routed++
	return nil
}

func applyColumnAction(x *extraction, rec types.Record, station string) error {
	n, err := routedColumn(rec.Action)
	if err != nil {
		return Malformed(rec.Line, rec.Action, fmt.Errorf("column number: %w", err))
	}
	x.catalog.AddColumn(station, n)

	kind := types.KindDoseSet
	for _, sk := range columnSubKinds {
		if strings.Contains(rec.Action, sk.marker) {
			kind = sk.kind
			break
		}
	}
	return x.emit(rec, types.LogEvent{Kind: kind, Station: station, Column: n - 1})
}

func applyOrderTransferred(x *extraction, rec types.Record, station string) error {
	from, to, err := transferColumns(rec.Action)
	if err != nil {
		return Malformed(rec.Line, rec.Action, fmt.Errorf("transfer columns: %w", err))
	}
	return x.emit(rec, types.LogEvent{
		Kind:     types.KindOrderTransferred,
		Station:  station,
		Column:   from - 1,
		ToColumn: to - 1,
	})
}

// columnAndFuel parses the "ТРК: " and "Прод.:" fields shared by dose and
// fill records.
func columnAndFuel(rec types.Record) (int, string, error) {
	raw, ok := FieldValue(rec.Action, FieldColumn)
	if !ok {
		return 0, "", Malformed(rec.Line, rec.Action, fmt.Errorf("missing %q", FieldColumn))
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, "", Malformed(rec.Line, rec.Action, fmt.Errorf("column number: %w", err))
	}
	fuel, ok := FieldValue(rec.Action, FieldFuel)
	if !ok || fuel == "" {
		return 0, "", Malformed(rec.Line, rec.Action, fmt.Errorf("missing %q", FieldFuel))
	}
	return n, fuel, nil
}

func applyDoseConfigured(x *extraction, rec types.Record, station string) error {
	n, fuel, err := columnAndFuel(rec)
	if err != nil {
		return err
	}
	x.catalog.AddColumnFuel(station, n, fuel)
	return x.emit(rec, types.LogEvent{Kind: types.KindDoseConfigured, Station: station, Column: n - 1})
}

func applyFillRecorded(x *extraction, rec types.Record, station string) error {
	n, fuel, err := columnAndFuel(rec)
	if err != nil {
		return err
	}
	x.catalog.AddColumnFuel(station, n, fuel)

	for _, item := range fillItems(rec.Action) {
		switch {
		case strings.Contains(item, FieldFuel):
			if name := afterColon(item); name != "" {
				x.catalog.AddFuel(name)
			}
		case strings.Contains(item, FieldColumn):
			id, err := strconv.Atoi(afterColon(item))
			if err != nil {
				return Malformed(rec.Line, rec.Action, fmt.Errorf("fill column %q: %w", item, err))
			}
			x.catalog.AddColumnID(id)
		}
	}
	x.stats.CatalogOnly++
	return nil
}
