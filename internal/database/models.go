package database

// Report is a stored curation report.
type Report struct {
	ID            int64
	RunID         string
	BodyMarkdown  string
	QualityPassed bool
	RecordCount   int
	EventCount    int
	GeneratedAt   *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalRecords    int
	Sources         int
	RecordsWithBody int
	Reports         int
}
