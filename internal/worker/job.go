// Package worker schedules ingestion and query jobs fairly across users on
// an elastic pool of workers.
package worker

import (
	"context"
	"errors"
)

// ErrDispatcherBusy means the job queue is full and the caller should retry
// later.
var ErrDispatcherBusy = errors.New("dispatcher busy")

// ErrCanceled means the job's owner logged out before the job ran.
var ErrCanceled = errors.New("job canceled")

type JobType int

const (
	IngestJob JobType = iota
	QueryJob
	stopJob
)

// Job carries one unit of work for a single user through the dispatcher.
type Job struct {
	Type     JobType
	Username string
	Ctx      context.Context

	// IngestJob payload
	Content []byte
	// QueryJob payload
	Question string

	resultCh chan jobResult
}

type jobResult struct {
	count  int
	answer string
	err    error
}

func (t JobType) String() string {
	switch t {
	case IngestJob:
		return "ingest"
	case QueryJob:
		return "query"
	case stopJob:
		return "stop"
	default:
		return "unknown"
	}
}
