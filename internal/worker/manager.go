package worker

import (
	"context"
	"time"

	"docuchat/internal/ingest"
	"docuchat/internal/query"

	"go.uber.org/zap"
)

// Ingester runs the document ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, username string, content []byte) (int, error)
}

// Answerer runs the question answering pipeline.
type Answerer interface {
	Answer(ctx context.Context, username, question string) (string, error)
}

// Manager is the synchronous facade over the dispatcher: callers submit a
// job and block until a worker has run it or their context expires.
type Manager struct {
	ingest     Ingester
	query      Answerer
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// Options sizes the worker pool and queue.
type Options struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

// NewManager builds the manager and starts its dispatcher.
func NewManager(ing Ingester, qry Answerer, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MinWorkers <= 0 {
		opts.MinWorkers = 2
	}
	if opts.MaxWorkers < opts.MinWorkers {
		opts.MaxWorkers = opts.MinWorkers
	}
	m := &Manager{ingest: ing, query: qry, logger: logger}
	m.dispatcher = NewDispatcher(opts.MinWorkers, opts.MaxWorkers, opts.QueueSize, m, opts.IdleTimeout)
	return m
}

// Ingest schedules a document upload and waits for the result.
func (m *Manager) Ingest(ctx context.Context, username string, content []byte) (int, error) {
	job := Job{
		Type:     IngestJob,
		Username: username,
		Ctx:      ctx,
		Content:  content,
		resultCh: make(chan jobResult, 1),
	}
	if err := m.dispatcher.Enqueue(job); err != nil {
		return 0, err
	}
	select {
	case ret := <-job.resultCh:
		return ret.count, ret.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Query schedules a question and waits for the answer.
func (m *Manager) Query(ctx context.Context, username, question string) (string, error) {
	job := Job{
		Type:     QueryJob,
		Username: username,
		Ctx:      ctx,
		Question: question,
		resultCh: make(chan jobResult, 1),
	}
	if err := m.dispatcher.Enqueue(job); err != nil {
		return "", err
	}
	select {
	case ret := <-job.resultCh:
		return ret.answer, ret.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CancelTenant drops queued work for a user, typically on logout.
func (m *Manager) CancelTenant(username string) {
	m.dispatcher.CancelUser(username)
}

// execute runs one job on the calling worker goroutine.
func (m *Manager) execute(job Job) {
	ctx := job.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	var ret jobResult
	switch job.Type {
	case IngestJob:
		ret.count, ret.err = m.ingest.Ingest(ctx, job.Username, job.Content)
	case QueryJob:
		ret.answer, ret.err = m.query.Answer(ctx, job.Username, job.Question)
	default:
		return
	}
	if ret.err != nil {
		m.logger.Debug("job failed",
			zap.String("type", job.Type.String()),
			zap.String("username", job.Username),
			zap.Error(ret.err))
	}
	if job.resultCh != nil {
		job.resultCh <- ret
	}
}

var (
	_ Ingester = (*ingest.Service)(nil)
	_ Answerer = (*query.Service)(nil)
)
