package domain

// POI is the canonical, persisted point of interest.
type POI struct {
	ExternalID int64   // assigned by the repository on insert
	InternalID string  `validate:"required,max=100"`
	Name       string  `validate:"required,max=255"`
	Category   string  `validate:"max=100"`
	Latitude   float64
	Longitude  float64
	Rating     float64 // mean of the source's rating samples, 0 when there were none
}

type Format string

const (
	FormatTabular  Format = "tabular"  // csv
	FormatDocument Format = "document" // json
	FormatTree     Format = "tree"     // xml
)

func (f Format) Valid() bool {
	switch f {
	case FormatTabular, FormatDocument, FormatTree:
		return true
	}
	return false
}

// RawRecord is one source entry as the reader saw it. Exactly one of
// Tabular, Document or Tree is set, matching Format.
type RawRecord struct {
	Format Format
	Index  int // 1-based position of the entry within its file

	Tabular  map[string]string
	Document *DocumentEntry
	Tree     map[string]string
}

// DocumentEntry holds the undecoded top-level values of one array element.
// Kind is the JSON kind of the element itself ("object", "array", "string", ...).
type DocumentEntry struct {
	Kind   string
	Fields map[string][]byte
}

// ImportJob is the unit of work handed to a JobRunner: one file.
type ImportJob struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Format    Format `json:"format"`
	BatchSize int    `json:"batch_size,omitempty"`
}

type FileSummary struct {
	Batches    int                  `json:"batches"`
	Records    int                  `json:"records"`
	Accepted   int                  `json:"accepted"`
	Persisted  int                  `json:"persisted"`
	Rejected   int                  `json:"rejected"`
	RejectedBy map[RejectReason]int `json:"rejected_by,omitempty"`
}

// Add folds one batch result into the running file summary.
func (s *FileSummary) Add(b BatchResult) {
	s.Batches++
	s.Records += b.Records
	s.Accepted += b.Accepted
	s.Persisted += len(b.IDs)
	s.Rejected += b.Rejected()
	for r, n := range b.RejectedBy {
		if s.RejectedBy == nil {
			s.RejectedBy = make(map[RejectReason]int, len(b.RejectedBy))
		}
		s.RejectedBy[r] += n
	}
}

type BatchResult struct {
	Records    int
	Accepted   int
	IDs        []int64 // external ids assigned to the accepted records, in order
	RejectedBy map[RejectReason]int
}

func (b BatchResult) Rejected() int {
	n := 0
	for _, c := range b.RejectedBy {
		n += c
	}
	return n
}

type JobState string

const (
	JobAccepted  JobState = "accepted"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// ImportStatus is what an operator sees for a submitted file.
type ImportStatus struct {
	JobID     string      `json:"job_id"`
	Path      string      `json:"path"`
	Format    Format      `json:"format"`
	State     JobState    `json:"state"`
	Summary   FileSummary `json:"summary"`
	Error     string      `json:"error,omitempty"`
	UpdatedAt int64       `json:"updated_at"` // unix seconds
}
