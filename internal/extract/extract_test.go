package extract

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/types"
)

const host = "AZS012-PC01"

func rec(line int, stamp, action string) types.Record {
	return types.Record{Host: host, Action: action, DateTime: stamp, Line: line}
}

func TestExtract_Routing(t *testing.T) {
	records := []types.Record{
		rec(1, "20240115T10:00:00", "ТРК : 3; Установка дозы; Рукав: 2; Счетчик: 1000,50"),
		rec(2, "20240115T10:00:01", "ТРК : 3; Доза установлена; Прод.: AI-92"),
		rec(3, "20240115T10:00:02", "Тр: 3078491; ТРК: 3; Прод.: AI-92; Доза установлена"),
		rec(4, "20240115T10:00:03", "ТРК : 3; На ТРК идет отпуск топлива"),
		rec(5, "20240115T10:05:00", "ТРК : 3; На ТРК закончен отпуск топлива"),
		rec(6, "20240115T10:05:01", "ТРК : 3; Конец транзакции; Счетчик: 1020,50"),
		rec(7, "20240115T10:06:00", "Тр: 3078492; Топливный заказ перемещен с ТРК: 8 на ТРК: 7"),
		rec(8, "20240115T10:07:00", "Тр: 3078491; ТРК: 3; Прод.: AI-92; Налив зафиксирован (ТРК: 3; Прод.: AI-92; Объем: 20,00)"),
		rec(9, "20240115T10:08:00", "Смена открыта"),
		rec(10, "20240115T10:09:00", "ТРК : 4; Ошибка связи"),
	}

	res, err := Extract(records)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := []struct {
		kind   types.EventKind
		column int
	}{
		{types.KindDoseSet, 2},
		{types.KindDoseSet, 2},
		{types.KindDoseConfigured, 2},
		{types.KindFuelingStarted, 2},
		{types.KindFuelingEnded, 2},
		{types.KindTransactionEnded, 2},
		{types.KindOrderTransferred, 7},
		{types.KindDoseSet, 3},
	}
	if len(res.Events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(res.Events), len(want), res.Events)
	}
	for i, w := range want {
		ev := res.Events[i]
		if ev.Kind != w.kind || ev.Column != w.column {
			t.Errorf("event %d = %s col %d, want %s col %d", i, ev.Kind, ev.Column, w.kind, w.column)
		}
		if ev.Station != "AZS012" {
			t.Errorf("event %d station = %q, want AZS012", i, ev.Station)
		}
		if ev.RawAction != records[indexOfEvent(i)].Action {
			t.Errorf("event %d lost its raw action", i)
		}
	}
	if res.Events[6].ToColumn != 6 {
		t.Errorf("transfer ToColumn = %d, want 6", res.Events[6].ToColumn)
	}

	if res.Stats.Records != 10 || res.Stats.Routed != 8 || res.Stats.CatalogOnly != 1 || res.Stats.Dropped != 1 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}

	cat := res.Catalog
	if got := cat.Stations(); !slices.Equal(got, []string{"AZS012"}) {
		t.Errorf("Stations() = %v", got)
	}
	if got := cat.StationColumns("AZS012"); !slices.Equal(got, []int{3, 4}) {
		t.Errorf("StationColumns() = %v, want [3 4]", got)
	}
	if got := cat.ColumnFuels("AZS012", 3); !slices.Equal(got, []string{"AI-92"}) {
		t.Errorf("ColumnFuels() = %v", got)
	}
	if got := cat.Columns(); !slices.Equal(got, []int{3, 4}) {
		t.Errorf("Columns() = %v, want [3 4]", got)
	}
}

// indexOfEvent maps event positions of TestExtract_Routing back to records:
// record 8 (fill) and 9 (dropped) emit nothing.
func indexOfEvent(i int) int {
	if i == 7 {
		return 9
	}
	return i
}

func TestExtract_FirstRuleWins(t *testing.T) {
	// A transfer record that also mentions a dose is still a transfer.
	res, err := Extract([]types.Record{
		rec(1, "20240115T10:00:00", "Тр: 1; Доза установлена; Топливный заказ перемещен с ТРК: 2 на ТРК: 1"),
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Kind != types.KindOrderTransferred {
		t.Fatalf("expected a single OrderTransferred, got %+v", res.Events)
	}
}

func TestExtract_FillSubList(t *testing.T) {
	res, err := Extract([]types.Record{
		rec(1, "20240115T10:00:00", "Тр: 5; ТРК: 2; Прод.: DT; Налив зафиксирован (ТРК: 2; Прод.: DT; Объем: 40,00)"),
		rec(2, "20240115T10:00:00", "Тр: 6; ТРК: 5; Прод.: AI-95; Налив зафиксирован (Прод.: AI-95; ТРК: 5)"),
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(res.Events) != 0 {
		t.Errorf("fill records must not emit events, got %d", len(res.Events))
	}
	if got := res.Catalog.Fuels(); !slices.Equal(got, []string{"DT", "AI-95"}) {
		t.Errorf("Fuels() = %v", got)
	}
	if got := res.Catalog.Columns(); !slices.Equal(got, []int{2, 5}) {
		t.Errorf("Columns() = %v", got)
	}
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name   string
		record types.Record
		target error
	}{
		{"bad timestamp", rec(1, "2024-01-15 10:00", "ТРК : 1; На ТРК идет отпуск топлива"), ErrBadTimestamp},
		{"empty timestamp", rec(1, "", "ТРК : 1; На ТРК идет отпуск топлива"), ErrBadTimestamp},
		{"column not a number", rec(1, "20240115T10:00:00", "ТРК : X; На ТРК идет отпуск топлива"), ErrMalformedAction},
		{"transfer without target", rec(1, "20240115T10:00:00", "Тр: 1; Топливный заказ перемещен с ТРК: 8"), ErrMalformedAction},
		{"dose without column", rec(1, "20240115T10:00:00", "Тр: 1; Прод.: AI-92; Доза установлена"), ErrMalformedAction},
		{"dose without fuel", rec(1, "20240115T10:00:00", "Тр: 1; ТРК: 2; Доза установлена"), ErrMalformedAction},
		{"fill bad sub column", rec(1, "20240115T10:00:00", "Тр: 1; ТРК: 2; Прод.: DT; Налив зафиксирован (ТРК: два)"), ErrMalformedAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Extract([]types.Record{tt.record})
			if err == nil {
				t.Fatalf("expected error, got result %+v", res)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("error %v is not %v", err, tt.target)
			}
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Line != 1 {
				t.Errorf("expected *ParseError for row 1, got %#v", err)
			}
			if res != nil {
				t.Errorf("failed extraction must not return a partial result")
			}
		})
	}
}

func TestExtract_DroppedRecordsSkipTimestamp(t *testing.T) {
	// Unrouted records are never timestamp-checked.
	res, err := Extract([]types.Record{rec(1, "garbage", "Смена закрыта")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.Stats.Dropped != 1 || len(res.Events) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestStationOf(t *testing.T) {
	tests := map[string]string{
		"AZS012-PC01":   "AZS012",
		" AZS7 -srv-1 ": "AZS7",
		"STANDALONE":    "STANDALONE",
		"":              "",
	}
	for in, want := range tests {
		if got := StationOf(in); got != want {
			t.Errorf("StationOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"20240115T10:30:15", time.Date(2024, 1, 15, 10, 30, 15, 0, time.UTC)},
		{"20240115T10:30:15123", time.Date(2024, 1, 15, 10, 30, 15, 123000000, time.UTC)},
		{"20240115T10:30:15.5", time.Date(2024, 1, 15, 10, 30, 15, 500000000, time.UTC)},
		{" 20231231T23:59:59 ", time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.raw)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) error = %v", tt.raw, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	for _, bad := range []string{"", "20240115", "20241315T10:30:15", "20240115T10:30:15abc", "20240115T10:30:151234"} {
		if _, err := ParseTimestamp(bad); err == nil {
			t.Errorf("ParseTimestamp(%q) expected error", bad)
		}
	}
}

func TestFieldHelpers(t *testing.T) {
	action := "ТРК : 3; Установка дозы; Рукав: 2; Счетчик: 999990,25"
	if v, ok := FieldValue(action, FieldHose); !ok || v != "2" {
		t.Errorf("FieldValue(hose) = %q, %v", v, ok)
	}
	v, ok := FieldValue(action, FieldCounter)
	if !ok {
		t.Fatal("counter field not found")
	}
	f, err := ParseDecimal(v)
	if err != nil || f != 999990.25 {
		t.Errorf("ParseDecimal(%q) = %v, %v", v, f, err)
	}
	if _, ok := FieldValue(action, FieldFuel); ok {
		t.Error("expected missing fuel field")
	}
	for _, s := range []string{"NAN", "nan", " NaN "} {
		if !IsNaNReading(s) {
			t.Errorf("IsNaNReading(%q) = false", s)
		}
	}
	if IsNaNReading("0,00") {
		t.Error("IsNaNReading(0,00) = true")
	}
}
