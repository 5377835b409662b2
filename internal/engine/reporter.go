package engine

// Reporter receives progress from a run. Calls are serialized.
type Reporter interface {
	// SourceDone is called once per source, failed or not.
	SourceDone(name, status string)
	// Finished is called once with the rendered run summary.
	Finished(summary string)
}

type nopReporter struct{}

func (nopReporter) SourceDone(string, string) {}
func (nopReporter) Finished(string)           {}
