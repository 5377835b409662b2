// Package catalog holds the station, column, fuel and hose catalogs built
// while reading BBOX logs.
//
// A Partial is produced by a single source and owned by it. A Catalog is the
// cumulative, process-lifetime view that partials are merged into. Merging
// is a set union: nothing observed is ever removed, merging the same partial
// twice changes nothing, and merge order only affects insertion order.
//
// Neither type is safe for concurrent mutation; callers serialize merges.
package catalog

import (
	"maps"
	"slices"
)

// orderedSet is a set that remembers first-insertion order.
type orderedSet[T comparable] struct {
	items []T
	index map[T]struct{}
}

func newOrderedSet[T comparable]() *orderedSet[T] {
	return &orderedSet[T]{index: make(map[T]struct{})}
}

// add inserts v and reports whether it was new.
func (s *orderedSet[T]) add(v T) bool {
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

func (s *orderedSet[T]) has(v T) bool {
	_, ok := s.index[v]
	return ok
}

func (s *orderedSet[T]) values() []T {
	if s == nil {
		return nil
	}
	return slices.Clone(s.items)
}

func (s *orderedSet[T]) len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// sameMembers compares two sets ignoring order.
func sameMembers[T comparable](a, b *orderedSet[T]) bool {
	if a.len() != b.len() {
		return false
	}
	if a == nil {
		return true
	}
	for _, v := range a.items {
		if !b.has(v) {
			return false
		}
	}
	return true
}

// =============================================================================
// SHARED STORAGE
// =============================================================================

// tables is the storage shared by Partial and Catalog.
type tables struct {
	stations *orderedSet[string]
	columns  *orderedSet[int]
	fuels    *orderedSet[string]

	// station -> column id -> fuel names
	stationColumns map[string]*columnTable

	// station -> column id -> hose -> fuel names
	hoses map[string]map[int]map[int]*orderedSet[string]
}

// columnTable keeps the column ids of a station in insertion order.
type columnTable struct {
	ids   *orderedSet[int]
	fuels map[int]*orderedSet[string]
}

func newTables() tables {
	return tables{
		stations:       newOrderedSet[string](),
		columns:        newOrderedSet[int](),
		fuels:          newOrderedSet[string](),
		stationColumns: make(map[string]*columnTable),
		hoses:          make(map[string]map[int]map[int]*orderedSet[string]),
	}
}

func (t *tables) addStation(station string) {
	t.stations.add(station)
	if _, ok := t.stationColumns[station]; !ok {
		t.stationColumns[station] = &columnTable{
			ids:   newOrderedSet[int](),
			fuels: make(map[int]*orderedSet[string]),
		}
	}
}

func (t *tables) addColumn(station string, column int) *orderedSet[string] {
	t.addStation(station)
	t.columns.add(column)
	ct := t.stationColumns[station]
	ct.ids.add(column)
	fuels, ok := ct.fuels[column]
	if !ok {
		fuels = newOrderedSet[string]()
		ct.fuels[column] = fuels
	}
	return fuels
}

func (t *tables) addColumnFuel(station string, column int, fuel string) {
	t.addColumn(station, column).add(fuel)
	t.fuels.add(fuel)
}

func (t *tables) addHoseFuel(station string, column, hose int, fuel string) {
	t.addColumnFuel(station, column, fuel)
	byColumn, ok := t.hoses[station]
	if !ok {
		byColumn = make(map[int]map[int]*orderedSet[string])
		t.hoses[station] = byColumn
	}
	byHose, ok := byColumn[column]
	if !ok {
		byHose = make(map[int]*orderedSet[string])
		byColumn[column] = byHose
	}
	set, ok := byHose[hose]
	if !ok {
		set = newOrderedSet[string]()
		byHose[hose] = set
	}
	set.add(fuel)
}

// union adds everything in src to t, walking src in insertion order.
func (t *tables) union(src *tables) {
	for _, station := range src.stations.items {
		t.addStation(station)
		ct := src.stationColumns[station]
		for _, column := range ct.ids.items {
			dst := t.addColumn(station, column)
			for _, fuel := range ct.fuels[column].items {
				dst.add(fuel)
			}
		}
	}
	for _, column := range src.columns.items {
		t.columns.add(column)
	}
	for _, fuel := range src.fuels.items {
		t.fuels.add(fuel)
	}
	for _, station := range src.stations.items {
		byColumn := src.hoses[station]
		for _, column := range src.stationColumns[station].ids.items {
			byHose := byColumn[column]
			for _, hose := range slices.Sorted(maps.Keys(byHose)) {
				for _, fuel := range byHose[hose].items {
					t.addHoseFuel(station, column, hose, fuel)
				}
			}
		}
	}
}

func (t *tables) stationColumnIDs(station string) []int {
	ct, ok := t.stationColumns[station]
	if !ok {
		return nil
	}
	return ct.ids.values()
}

func (t *tables) columnFuels(station string, column int) []string {
	ct, ok := t.stationColumns[station]
	if !ok {
		return nil
	}
	return ct.fuels[column].values()
}

func (t *tables) hoseFuels(station string, column, hose int) []string {
	return t.hoses[station][column][hose].values()
}

func (t *tables) hoseIDs(station string, column int) []int {
	byHose := t.hoses[station][column]
	if len(byHose) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(byHose))
}

func (t *tables) equal(o *tables) bool {
	if !sameMembers(t.stations, o.stations) ||
		!sameMembers(t.columns, o.columns) ||
		!sameMembers(t.fuels, o.fuels) {
		return false
	}
	for _, station := range t.stations.items {
		a, b := t.stationColumns[station], o.stationColumns[station]
		if !sameMembers(a.ids, b.ids) {
			return false
		}
		for _, column := range a.ids.items {
			if !sameMembers(a.fuels[column], b.fuels[column]) {
				return false
			}
		}
		ha, hb := t.hoses[station], o.hoses[station]
		if len(ha) != len(hb) {
			return false
		}
		for column, byHose := range ha {
			if len(byHose) != len(hb[column]) {
				return false
			}
			for hose, fuels := range byHose {
				if !sameMembers(fuels, hb[column][hose]) {
					return false
				}
			}
		}
	}
	return true
}

// =============================================================================
// PARTIAL CATALOG
// =============================================================================

// Partial is the catalog delta extracted from one source.
type Partial struct {
	t tables
}

// NewPartial returns an empty partial catalog.
func NewPartial() *Partial {
	return &Partial{t: newTables()}
}

// AddStation registers a station.
func (p *Partial) AddStation(station string) { p.t.addStation(station) }

// AddColumn registers a 1-based column id under a station.
func (p *Partial) AddColumn(station string, column int) { p.t.addColumn(station, column) }

// AddColumnFuel associates a fuel name with a station column.
func (p *Partial) AddColumnFuel(station string, column int, fuel string) {
	p.t.addColumnFuel(station, column, fuel)
}

// AddFuel registers a fuel name in the global fuel catalog.
func (p *Partial) AddFuel(fuel string) { p.t.fuels.add(fuel) }

// AddColumnID registers a column id in the global column catalog.
func (p *Partial) AddColumnID(column int) { p.t.columns.add(column) }

// AddHoseFuel records that hose on a station column dispensed fuel.
func (p *Partial) AddHoseFuel(station string, column, hose int, fuel string) {
	p.t.addHoseFuel(station, column, hose, fuel)
}

// Stations returns the stations in first-seen order.
func (p *Partial) Stations() []string { return p.t.stations.values() }

// StationColumns returns the column ids seen for a station.
func (p *Partial) StationColumns(station string) []int { return p.t.stationColumnIDs(station) }

// ColumnFuels returns the fuel names associated with a station column.
func (p *Partial) ColumnFuels(station string, column int) []string {
	return p.t.columnFuels(station, column)
}

// HoseFuels returns the fuel names recorded for a hose.
func (p *Partial) HoseFuels(station string, column, hose int) []string {
	return p.t.hoseFuels(station, column, hose)
}

// Fuels returns the global fuel names in first-seen order.
func (p *Partial) Fuels() []string { return p.t.fuels.values() }

// Columns returns the global column ids in first-seen order.
func (p *Partial) Columns() []int { return p.t.columns.values() }

// MaxColumn returns the largest column id registered under any station, or
// 0 when none is known. It sizes the reconstructor's column-state array.
func (p *Partial) MaxColumn() int {
	maxID := 0
	for _, ct := range p.t.stationColumns {
		for _, id := range ct.ids.items {
			maxID = max(maxID, id)
		}
	}
	return maxID
}

// =============================================================================
// CUMULATIVE CATALOG
// =============================================================================

// Catalog is the cumulative catalog across merged sources.
type Catalog struct {
	t tables
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{t: newTables()}
}

// Merge unions p into c. A nil partial is a no-op.
func (c *Catalog) Merge(p *Partial) {
	if p == nil {
		return
	}
	c.t.union(&p.t)
}

// Clone returns an independent copy of c.
func (c *Catalog) Clone() *Catalog {
	out := New()
	out.t.union(&c.t)
	return out
}

// Equal reports whether c and o hold the same content, ignoring order.
func (c *Catalog) Equal(o *Catalog) bool { return c.t.equal(&o.t) }

// Stations returns the stations in first-seen order.
func (c *Catalog) Stations() []string { return c.t.stations.values() }

// Columns returns every observed column id in first-seen order.
func (c *Catalog) Columns() []int { return c.t.columns.values() }

// Fuels returns every observed fuel name in first-seen order.
func (c *Catalog) Fuels() []string { return c.t.fuels.values() }

// StationColumns returns the column ids of a station in first-seen order.
func (c *Catalog) StationColumns(station string) []int { return c.t.stationColumnIDs(station) }

// ColumnFuels returns the fuel names associated with a station column.
func (c *Catalog) ColumnFuels(station string, column int) []string {
	return c.t.columnFuels(station, column)
}

// HoseFuels returns the fuel names recorded for a hose of a station column.
func (c *Catalog) HoseFuels(station string, column, hose int) []string {
	return c.t.hoseFuels(station, column, hose)
}

// Hoses returns the hose numbers recorded for a station column, ascending.
func (c *Catalog) Hoses(station string, column int) []int { return c.t.hoseIDs(station, column) }
