package domain

import "time"

// CompositeStatus enumerates the terminal states of a composite run.
type CompositeStatus string

const (
	CompositeStatusSucceeded CompositeStatus = "succeeded"
	CompositeStatusFailed    CompositeStatus = "failed"
)

// CompositeRecord is the ledger entry written once per pipeline run.
type CompositeRecord struct {
	ID            string
	Model         string
	StyleHint     string
	SubjectSource string
	ObjectSource  string
	Status        CompositeStatus
	ErrorKind     string
	ErrorDetail   string
	ResultName    string
	ResultURL     string
	DurationMS    int64
	CreatedAt     time.Time
}
