package engine

import (
	"github.com/datallboy/gofetch/internal/domain"
	"github.com/datallboy/gofetch/internal/manifest"
)

// Job is one pending manifest record handed to a worker. The retry loop for
// a job runs serially inside the worker that picked it up, so there is never
// more than one in-flight attempt per record.
type Job struct {
	Record manifest.Record
}

// Reporter receives every state change the pool produces. The progress
// aggregator is the production implementation.
type Reporter interface {
	Begin(total int)
	SetCurrent(name string)
	AddBytes(n int64)
	Record(o domain.Outcome)
}

// NopReporter discards all progress reporting.
type NopReporter struct{}

func (NopReporter) Begin(int)             {}
func (NopReporter) SetCurrent(string)     {}
func (NopReporter) AddBytes(int64)        {}
func (NopReporter) Record(domain.Outcome) {}
