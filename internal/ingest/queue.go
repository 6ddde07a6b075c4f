package ingest

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// JobQueue is an in-memory queue that feeds reload jobs to a single worker
type JobQueue struct {
	items    chan *Job
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(*Job) error
}

// NewJobQueue creates a new job queue with the specified buffer size
func NewJobQueue(bufferSize int, logger *logrus.Logger) *JobQueue {
	return &JobQueue{
		items:    make(chan *Job, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(*Job) error, 0),
	}
}

// Push adds a job to the queue. The read lock stays held across the send so
// Close cannot close the channel between the check and the send.
func (q *JobQueue) Push(job *Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	// Non-blocking send to prevent deadlocks
	select {
	case q.items <- job:
		q.logger.WithField("job_id", job.ID).Debug("Pushed job to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each job
func (q *JobQueue) Subscribe(handler func(*Job) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *JobQueue) Start() {
	go q.process()
}

// process handles the queue processing loop
func (q *JobQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case job, ok := <-q.items:
			if !ok {
				return
			}
			q.processJob(job)
		}
	}
}

// processJob sends the job to all subscribed handlers
func (q *JobQueue) processJob(job *Job) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(job); err != nil {
			q.logger.WithError(err).WithField("job_id", job.ID).Error("Handler failed to process job")
		}
	}
}

// Close stops the queue and prevents new jobs from being added
func (q *JobQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	close(q.items)
	return nil
}

// Len returns the current number of jobs in the queue
func (q *JobQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *JobQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
