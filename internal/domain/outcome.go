package domain

// Status is the terminal state of one manifest record after a sync run.
type Status string

const (
	// StatusSuccess means the file was downloaded and passed verification.
	StatusSuccess Status = "success"
	// StatusSkipped means the local file was already present and verified.
	StatusSkipped Status = "skipped"
	// StatusFailed means the record failed permanently or exhausted retries.
	StatusFailed Status = "failed"
)

// Outcome is produced exactly once per record dispatched to the pool.
type Outcome struct {
	RecordID string
	Filename string
	Status   Status
	Err      error
	Attempts int
}

// ErrorText returns the failure message, or "" for non-failed outcomes.
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
