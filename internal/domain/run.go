package domain

// RunReport accumulates the outcome counters of one ingestion run. It is
// returned from the run as a value; nothing in the pipeline keeps
// process-wide counters.
type RunReport struct {
	FilesScanned         int
	FilesSkipped         int
	FilesFailed          int
	RecipesBranched      int
	RecipesMerged        int
	ComponentsWritten    int
	ObservationsAppended int
	ParseWarnings        int
	ProviderFailures     int
	IntegritySkips       int
}

// Degraded reports whether any record was skipped or resolved on a fallback
// path during the run.
func (r RunReport) Degraded() bool {
	return r.FilesFailed > 0 || r.ParseWarnings > 0 || r.ProviderFailures > 0 || r.IntegritySkips > 0
}
