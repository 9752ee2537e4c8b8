package worker

import (
	"container/list"
	"sync"
	"time"
)

type userQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher pulls jobs off a bounded queue and hands them to pool workers
// one user at a time. The ready list rotates users so a user with a deep
// backlog cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job

	mu        sync.Mutex
	queues    map[string]*userQueue
	ready     *list.List // usernames in round-robin order
	positions map[string]*list.Element
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, manager *Manager, idleTimeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	pool := newJobChannelPool(minWorkers, maxWorkers, idleTimeout, manager)

	d := &Dispatcher{
		pool:      pool,
		jobQueue:  make(chan Job, queueSize),
		queues:    make(map[string]*userQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
	}

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Enqueue offers a job to the dispatcher without blocking.
func (d *Dispatcher) Enqueue(job Job) error {
	select {
	case d.jobQueue <- job:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) run() {
	for {
		if !d.dispatchOne() {
			// nothing queued, block until a job arrives
			job := <-d.jobQueue
			d.enqueueJob(job)
			continue
		}
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		default:
		}
	}
}

// CancelUser drops every queued job for the user and fails its waiters.
func (d *Dispatcher) CancelUser(username string) {
	d.mu.Lock()
	q := d.queues[username]
	delete(d.queues, username)
	if elem, ok := d.positions[username]; ok {
		d.ready.Remove(elem)
		delete(d.positions, username)
	}
	d.mu.Unlock()

	if q == nil {
		return
	}
	for _, job := range q.jobs {
		if job.resultCh != nil {
			job.resultCh <- jobResult{err: ErrCanceled}
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.Username]
	if q == nil {
		q = &userQueue{}
		d.queues[job.Username] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	elem := d.ready.PushBack(job.Username)
	d.positions[job.Username] = elem
}

// dispatchOne takes the next user in rotation and hands one of their jobs to
// a worker. Returns false when no jobs are queued.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	username := elem.Value.(string)
	q := d.queues[username]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, username)
		delete(d.queues, username)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	workerChan <- job
	return true
}
