package mediasoupclient

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
)

// awaitQueue runs tasks one at a time in FIFO order on its own goroutine.
type awaitQueue struct {
	mu      sync.Mutex
	logger  logr.Logger
	tasks   []*queueTask
	running bool
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
}

type queueTask struct {
	name    string
	ctx     context.Context
	fn      func(ctx context.Context) error
	done    chan error
	started bool
}

func newAwaitQueue(logger logr.Logger) *awaitQueue {
	ctx, cancel := context.WithCancel(context.Background())

	return &awaitQueue{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Push enqueues fn and waits for its result. fn runs with a context that is
// done when ctx is, or when the queue is closed. A task still waiting in the
// queue when ctx ends or the queue closes fails with ErrCancelled.
func (q *awaitQueue) Push(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	task := &queueTask{
		name: name,
		ctx:  ctx,
		fn:   fn,
		done: make(chan error, 1),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return NewCancelledError(nil, "%s: queue closed", name)
	}
	q.tasks = append(q.tasks, task)
	if !q.running {
		q.running = true
		go q.run()
	}
	q.mu.Unlock()

	select {
	case err := <-task.done:
		return err

	case <-ctx.Done():
		q.mu.Lock()
		if !task.started && q.remove(task) {
			q.mu.Unlock()
			return NewCancelledError(ctx.Err(), "%s aborted", name)
		}
		q.mu.Unlock()

		// Already running, its own context is done too.
		return <-task.done
	}
}

// Len returns the number of tasks waiting or running.
func (q *awaitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}

func (q *awaitQueue) remove(task *queueTask) bool {
	for i, t := range q.tasks {
		if t == task {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return true
		}
	}
	return false
}

func (q *awaitQueue) run() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 || q.closed {
			q.running = false
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		task.started = true
		q.mu.Unlock()

		err := q.execute(task)

		q.mu.Lock()
		q.remove(task)
		q.mu.Unlock()

		task.done <- err
	}
}

func (q *awaitQueue) execute(task *queueTask) (err error) {
	ctx, cancel := context.WithCancel(task.ctx)
	defer cancel()

	stop := context.AfterFunc(q.ctx, cancel)
	defer stop()

	q.logger.V(1).Info("running task", "name", task.name)

	err = task.fn(ctx)

	if err != nil {
		switch {
		case q.ctx.Err() != nil:
			err = NewCancelledError(err, "%s: transport closed", task.name)
		case task.ctx.Err() != nil && !isClassified(err):
			err = NewCancelledError(err, "%s aborted", task.name)
		}
	}

	return err
}

// Close stops the queue. Waiting tasks fail with ErrCancelled and the running
// task has its context cancelled.
func (q *awaitQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true

	var pending []*queueTask
	for _, task := range q.tasks {
		if !task.started {
			pending = append(pending, task)
		}
	}
	q.tasks = q.tasks[:0]
	q.mu.Unlock()

	q.cancel()

	for _, task := range pending {
		task.done <- NewCancelledError(nil, "%s: transport closed", task.name)
	}
}
