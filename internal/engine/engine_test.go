package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/extract"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/metrics"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/reconstruct"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/types"
)

type sliceSource struct {
	name    string
	records []types.Record
	err     error
}

func (s sliceSource) Name() string { return s.name }

func (s sliceSource) Records(context.Context) ([]types.Record, error) {
	return s.records, s.err
}

// session returns the records of one complete 10-unit, 5-minute
// transaction on column 1 of host's station, on the given January day.
func session(host string, day int, fuel string) []types.Record {
	stamp := func(hhmmss string) string { return fmt.Sprintf("202401%02dT%s", day, hhmmss) }
	actions := []struct{ at, action string }{
		{"09:00:00", "Тр: 1; ТРК: 1; Прод.: " + fuel + "; Доза установлена"},
		{"09:00:01", "ТРК : 1; Установка дозы; Рукав: 1; Счетчик: 100,00"},
		{"09:00:05", "ТРК : 1; На ТРК идет отпуск топлива"},
		{"09:05:05", "ТРК : 1; На ТРК закончен отпуск топлива"},
		{"09:05:06", "ТРК : 1; Конец транзакции; Счетчик: 110,00"},
		{"09:06:00", "Смена закрыта"},
	}
	out := make([]types.Record, len(actions))
	for i, a := range actions {
		out[i] = types.Record{Host: host, Action: a.action, DateTime: stamp(a.at), Line: i + 1}
	}
	return out
}

type recordingReporter struct {
	mu       sync.Mutex
	done     []string
	finished []string
}

func (r *recordingReporter) SourceDone(name, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, name+": "+status)
}

func (r *recordingReporter) Finished(summary string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, summary)
}

func TestProcessSource(t *testing.T) {
	out, err := ProcessSource("BBOX_1.XML", session("AZS01-PC", 15, "AI-92"))
	if err != nil {
		t.Fatalf("ProcessSource() error = %v", err)
	}
	if len(out.Events) != 1 || out.Events[0].Volume != 10 {
		t.Fatalf("unexpected events %+v", out.Events)
	}
	if out.Extract.Dropped != 1 || out.Transactions.Emitted != 1 {
		t.Errorf("unexpected stats %+v %+v", out.Extract, out.Transactions)
	}
	if got := out.CatalogDelta.HoseFuels("AZS01", 1, 1); !slices.Equal(got, []string{"AI-92"}) {
		t.Errorf("HoseFuels() = %v", got)
	}
}

func TestProcessSource_Errors(t *testing.T) {
	bad := session("AZS01-PC", 15, "AI-92")
	bad[2].DateTime = "yesterday"
	_, err := ProcessSource("bad.xml", bad)
	if !errors.Is(err, extract.ErrBadTimestamp) {
		t.Errorf("error = %v, want ErrBadTimestamp", err)
	}
	var se *SourceError
	if !errors.As(err, &se) || se.Source != "bad.xml" {
		t.Errorf("expected *SourceError for bad.xml, got %#v", err)
	}

	// A transfer to a column no record ever registered.
	overflow := []types.Record{
		{Host: "AZS01-PC", DateTime: "20240115T09:00:00", Action: "ТРК : 1; На ТРК идет отпуск топлива", Line: 1},
		{Host: "AZS01-PC", DateTime: "20240115T09:00:01", Action: "Тр: 9; Топливный заказ перемещен с ТРК: 1 на ТРК: 4", Line: 2},
	}
	if _, err := ProcessSource("overflow.xml", overflow); !errors.Is(err, reconstruct.ErrColumnIndexOutOfRange) {
		t.Errorf("error = %v, want ErrColumnIndexOutOfRange", err)
	}
}

func TestEngine_EndToEnd(t *testing.T) {
	rep := &recordingReporter{}
	e := New(Options{Workers: 2, Reporter: rep})

	sum, err := e.Run(context.Background(), []Source{
		sliceSource{name: "a.xml", records: session("AZS01-PC", 15, "AI-92")},
		sliceSource{name: "b.xml", records: session("AZS02-PC", 17, "AI-92")},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Processed != 2 || sum.Failed() != 0 || sum.Events != 2 || sum.RunID == "" {
		t.Errorf("unexpected summary %+v", sum)
	}

	mean, ok := e.MeanRate(1, "AI-92", types.DateRange{})
	if !ok || mean != 2 {
		t.Errorf("MeanRate() = %v, %v; want 2, true", mean, ok)
	}
	if got := len(e.QueryRateSeries(1, "AI-92", types.DateRange{})); got != 2 {
		t.Errorf("QueryRateSeries() returned %d points, want 2", got)
	}
	first, last, ok := e.ObservedDateRange()
	if !ok || first.Day != 15 || last.Day != 17 {
		t.Errorf("ObservedDateRange() = %v, %v, %v", first, last, ok)
	}

	stations := e.Catalog().Stations()
	slices.Sort(stations)
	if !slices.Equal(stations, []string{"AZS01", "AZS02"}) {
		t.Errorf("Stations() = %v", stations)
	}
	if len(rep.done) != 2 || len(rep.finished) != 1 {
		t.Errorf("reporter got %d SourceDone and %d Finished", len(rep.done), len(rep.finished))
	}
}

func TestEngine_DoubleMergeDoubleCounts(t *testing.T) {
	e := New(Options{})
	out, err := ProcessSource("a.xml", session("AZS01-PC", 15, "DT"))
	if err != nil {
		t.Fatalf("ProcessSource() error = %v", err)
	}
	before := e.Catalog()

	for range 2 {
		if err := e.Merge(out); err != nil {
			t.Fatalf("Merge() error = %v", err)
		}
	}

	if got := len(e.Rows()); got != 2 {
		t.Errorf("Rows() = %d, want 2 after merging the same outcome twice", got)
	}
	once := New(Options{})
	if err := once.Merge(out); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !e.Catalog().Equal(once.Catalog()) {
		t.Error("catalog must be unaffected by a repeated merge")
	}
	if before.Equal(e.Catalog()) {
		t.Error("catalog snapshot must not track later merges")
	}
}

func TestEngine_FailedSourceNotMerged(t *testing.T) {
	bad := session("AZS09-PC", 16, "G-100")
	bad[len(bad)-2].Action = "ТРК : X; Конец транзакции"

	rep := &recordingReporter{}
	e := New(Options{Workers: 1, Reporter: rep})
	sum, err := e.Run(context.Background(), []Source{
		sliceSource{name: "good.xml", records: session("AZS01-PC", 15, "AI-92")},
		sliceSource{name: "bad.xml", records: bad},
		sliceSource{name: "unreadable.xml", err: errors.New("permission denied")},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if sum.Processed != 1 || sum.Failed() != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	for _, f := range sum.Failures {
		if f.Source == "good.xml" {
			t.Errorf("good source reported as failure: %v", f)
		}
	}
	if slices.Contains(e.Catalog().Stations(), "AZS09") {
		t.Error("failed source leaked into the catalog")
	}
	if slices.Contains(e.Catalog().Fuels(), "G-100") {
		t.Error("failed source leaked its fuel into the catalog")
	}
	if e.Merged() != 1 {
		t.Errorf("Merged() = %d, want 1", e.Merged())
	}

	failures := 0
	for _, line := range rep.done {
		if strings.Contains(line, "failed:") {
			failures++
		}
	}
	if failures != 2 {
		t.Errorf("reporter saw %d failures, want 2: %v", failures, rep.done)
	}
}

func TestEngine_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(Options{})
	sum, err := e.Run(ctx, []Source{
		sliceSource{name: "a.xml", records: session("AZS01-PC", 15, "AI-92")},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if sum.Processed != 0 || sum.Skipped != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if _, _, ok := e.ObservedDateRange(); ok {
		t.Error("cancelled run must leave the model empty")
	}
}

// cancellingSource cancels the run when it is read; the source itself still
// completes.
type cancellingSource struct {
	sliceSource
	cancel context.CancelFunc
}

func (s cancellingSource) Records(ctx context.Context) ([]types.Record, error) {
	s.cancel()
	return s.sliceSource.Records(ctx)
}

func TestEngine_CancelBetweenSources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := New(Options{Workers: 1})
	sum, err := e.Run(ctx, []Source{
		cancellingSource{sliceSource{name: "a.xml", records: session("AZS01-PC", 15, "AI-92")}, cancel},
		sliceSource{name: "b.xml", records: session("AZS02-PC", 16, "AI-92")},
		sliceSource{name: "c.xml", records: session("AZS03-PC", 17, "AI-92")},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if sum.Processed != 1 || sum.Skipped != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if got := len(e.Rows()); got != 1 {
		t.Errorf("Rows() = %d, want the in-flight source only", got)
	}
}

func TestEngine_ManySources(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAnalyzerMetrics(reg)
	e := New(Options{Workers: 3, Metrics: m})

	var sources []Source
	for i := range 20 {
		sources = append(sources, sliceSource{
			name:    fmt.Sprintf("BBOX_%02d.XML", i),
			records: session(fmt.Sprintf("AZS%02d-PC", i), 1+i%28, "AI-95"),
		})
	}
	sum, err := e.Run(context.Background(), sources)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Processed != 20 || sum.Events != 20 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if got := len(e.Rows()); got != 20 {
		t.Errorf("Rows() = %d, want 20", got)
	}
	if got := len(e.Catalog().Stations()); got != 20 {
		t.Errorf("Stations() = %d, want 20", got)
	}
	if got := testutil.ToFloat64(m.SourcesTotal.WithLabelValues(metrics.StatusOK)); got != 20 {
		t.Errorf("sources_total{ok} = %v, want 20", got)
	}
	if got := testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("emitted")); got != 20 {
		t.Errorf("transactions_total{emitted} = %v, want 20", got)
	}
}

func TestEngine_EmptyRun(t *testing.T) {
	e := New(Options{})
	sum, err := e.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Total != 0 || sum.Duration < 0 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if _, _, ok := e.ObservedDateRange(); ok {
		t.Error("empty model reported a date range")
	}
	if len(e.Catalog().Stations()) != 0 {
		t.Error("empty model has stations")
	}
}

func TestStore_MergeErrors(t *testing.T) {
	s := NewStore()
	if err := s.Commit(nil); !errors.Is(err, ErrMerge) {
		t.Errorf("Commit(nil) error = %v, want ErrMerge", err)
	}

	out, err := ProcessSource("a.xml", session("AZS01-PC", 15, "DT"))
	if err != nil {
		t.Fatalf("ProcessSource() error = %v", err)
	}

	// Simulate a second writer entering mid-commit.
	s.committing.Store(true)
	err = s.Commit(out)
	var me *MergeError
	if !errors.As(err, &me) || me.Source != "a.xml" {
		t.Fatalf("Commit() error = %v, want *MergeError for a.xml", err)
	}
	if s.Series().Len() != 0 || len(s.Catalog().Stations()) != 0 {
		t.Error("rejected commit mutated the store")
	}

	s.committing.Store(false)
	if err := s.Commit(out); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if s.Series().Len() != 1 || s.Merged() != 1 {
		t.Errorf("store has %d events and %d merges", s.Series().Len(), s.Merged())
	}
}

func TestEngine_ConcurrentMerges(t *testing.T) {
	e := New(Options{})
	out, err := ProcessSource("a.xml", session("AZS01-PC", 15, "DT"))
	if err != nil {
		t.Fatalf("ProcessSource() error = %v", err)
	}

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.Merge(out); err != nil {
				t.Errorf("Merge() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(e.Rows()); got != 50 {
		t.Errorf("Rows() = %d, want 50", got)
	}
}

func TestSummary_String(t *testing.T) {
	s := &Summary{RunID: "r1", Total: 3, Processed: 2, Events: 7, Duration: 1500 * time.Millisecond,
		Failures: []*SourceError{{Source: "x", Err: errors.New("boom")}}}
	want := "run r1: 2/3 sources processed, 1 failed, 0 skipped, 7 events in 1.5s"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
