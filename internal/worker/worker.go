package worker

// poolWorker pulls one job at a time off its channel and runs it through the
// manager, releasing itself back to the pool between jobs.
type poolWorker struct {
	pool       *jobChannelPool
	manager    *Manager
	jobChannel chan Job
}

func newWorker(pool *jobChannelPool, manager *Manager) *poolWorker {
	return &poolWorker{
		pool:       pool,
		manager:    manager,
		jobChannel: make(chan Job),
	}
}

func (w *poolWorker) start() {
	go func() {
		for {
			w.pool.release(w.jobChannel)
			job := <-w.jobChannel
			if job.Type == stopJob {
				w.pool.retire(w.jobChannel)
				return
			}
			w.manager.execute(job)
		}
	}()
}
