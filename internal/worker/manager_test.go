package worker

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeIngester struct {
	mu      sync.Mutex
	calls   []string
	started chan struct{} // closed-ish signal per call, optional
	release chan struct{} // block until released, optional
	err     error
}

func (f *fakeIngester) Ingest(ctx context.Context, username string, content []byte) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, username+":"+string(content))
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return 0, f.err
	}
	return len(content), nil
}

type fakeAnswerer struct {
	err error
}

func (f *fakeAnswerer) Answer(ctx context.Context, username, question string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("answer for %s: %s", username, question), nil
}

func TestManagerRunsJobsAndReturnsResults(t *testing.T) {
	m := NewManager(&fakeIngester{}, &fakeAnswerer{}, Options{MinWorkers: 2, MaxWorkers: 4, QueueSize: 8}, nil)

	count, err := m.Ingest(context.Background(), "alice", []byte("12345"))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected count 5, got %d", count)
	}

	answer, err := m.Query(context.Background(), "alice", "what?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if answer != "answer for alice: what?" {
		t.Fatalf("unexpected answer %q", answer)
	}
}

func TestManagerPropagatesJobErrors(t *testing.T) {
	ingErr := errors.New("extraction failed")
	qryErr := errors.New("no answer")
	m := NewManager(&fakeIngester{err: ingErr}, &fakeAnswerer{err: qryErr}, Options{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, nil)

	if _, err := m.Ingest(context.Background(), "alice", []byte("x")); !errors.Is(err, ingErr) {
		t.Fatalf("expected ingest error, got %v", err)
	}
	if _, err := m.Query(context.Background(), "alice", "q"); !errors.Is(err, qryErr) {
		t.Fatalf("expected query error, got %v", err)
	}
}

func TestManagerReportsBusyWhenQueueFull(t *testing.T) {
	ing := &fakeIngester{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	m := NewManager(ing, &fakeAnswerer{}, Options{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1}, nil)

	results := make(chan error, 3)
	submit := func(tag string) {
		go func() {
			_, err := m.Ingest(context.Background(), "alice", []byte(tag))
			results <- err
		}()
	}

	// first job occupies the only worker
	submit("a")
	<-ing.started
	// second job is popped by the dispatcher, which now blocks waiting for
	// a worker; third fills the queue buffer
	submit("b")
	time.Sleep(50 * time.Millisecond)
	submit("c")
	time.Sleep(50 * time.Millisecond)

	if _, err := m.Ingest(context.Background(), "alice", []byte("d")); !errors.Is(err, ErrDispatcherBusy) {
		t.Fatalf("expected ErrDispatcherBusy, got %v", err)
	}

	close(ing.release)
	for i := 0; i < 3; i++ {
		select {
		case err := <-results:
			if err != nil {
				t.Fatalf("queued job failed: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("queued jobs did not finish")
		}
	}
}

func TestManagerIngestHonorsContext(t *testing.T) {
	ing := &fakeIngester{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	m := NewManager(ing, &fakeAnswerer{}, Options{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, nil)
	defer close(ing.release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Ingest(ctx, "alice", []byte("slow"))
		done <- err
	}()
	<-ing.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("ingest did not return after cancellation")
	}
}

func newBareDispatcher() *Dispatcher {
	return &Dispatcher{
		queues:    make(map[string]*userQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
	}
}

func TestCancelUserFailsPendingJobs(t *testing.T) {
	d := newBareDispatcher()

	aliceCh := make(chan jobResult, 2)
	bobCh := make(chan jobResult, 1)
	d.enqueueJob(Job{Type: QueryJob, Username: "alice", resultCh: aliceCh})
	d.enqueueJob(Job{Type: QueryJob, Username: "alice", resultCh: aliceCh})
	d.enqueueJob(Job{Type: QueryJob, Username: "bob", resultCh: bobCh})

	d.CancelUser("alice")

	for i := 0; i < 2; i++ {
		select {
		case ret := <-aliceCh:
			if !errors.Is(ret.err, ErrCanceled) {
				t.Fatalf("expected ErrCanceled, got %v", ret.err)
			}
		default:
			t.Fatalf("pending job %d was not failed", i)
		}
	}
	if q := d.queues["bob"]; q == nil || len(q.jobs) != 1 {
		t.Fatalf("bob's queued job must survive alice's cancellation")
	}
	if _, ok := d.queues["alice"]; ok {
		t.Fatalf("alice's queue should be gone")
	}
}

func TestDispatchRotatesAcrossUsers(t *testing.T) {
	ing := &fakeIngester{}
	m := &Manager{ingest: ing, query: &fakeAnswerer{}}
	d := newBareDispatcher()
	d.pool = newJobChannelPool(1, 1, time.Minute, m)
	m.dispatcher = d

	results := make(chan jobResult, 3)
	d.enqueueJob(Job{Type: IngestJob, Username: "alice", Content: []byte("a1"), resultCh: results})
	d.enqueueJob(Job{Type: IngestJob, Username: "alice", Content: []byte("a2"), resultCh: results})
	d.enqueueJob(Job{Type: IngestJob, Username: "bob", Content: []byte("b1"), resultCh: results})

	for i := 0; i < 3; i++ {
		if !d.dispatchOne() {
			t.Fatalf("dispatch %d found no job", i)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-results:
		case <-time.After(5 * time.Second):
			t.Fatalf("job %d did not finish", i)
		}
	}

	ing.mu.Lock()
	defer ing.mu.Unlock()
	want := []string{"alice:a1", "bob:b1", "alice:a2"}
	if len(ing.calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), ing.calls)
	}
	for i := range want {
		if ing.calls[i] != want[i] {
			t.Fatalf("call %d = %q, want %q (rotation broken: %v)", i, ing.calls[i], want[i], ing.calls)
		}
	}
}
