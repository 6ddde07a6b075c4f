package ingest

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewJobQueue(t *testing.T) {
	logger := logrus.New()
	q := NewJobQueue(10, logger)
	assert.NotNil(t, q)
	assert.Equal(t, 10, q.maxSize)
	assert.False(t, q.IsClosed())
}

func TestJobQueue_Push(t *testing.T) {
	logger := logrus.New()
	q := NewJobQueue(2, logger)

	// Test successful push
	err := q.Push(&Job{ID: "job-1"})
	assert.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	// Test queue full
	_ = q.Push(&Job{ID: "job-2"})
	err = q.Push(&Job{ID: "job-3"})
	assert.Equal(t, ErrQueueFull, err)

	// Test closed queue
	q.Close()
	err = q.Push(&Job{ID: "job-4"})
	assert.Equal(t, ErrQueueClosed, err)
}

func TestJobQueue_Subscribe(t *testing.T) {
	logger := logrus.New()
	q := NewJobQueue(10, logger)

	var processed []string
	var mu sync.Mutex

	// Add handler
	q.Subscribe(func(job *Job) error {
		mu.Lock()
		processed = append(processed, job.ID)
		mu.Unlock()
		return nil
	})

	// Start queue
	q.Start()

	// Push jobs
	assert.NoError(t, q.Push(&Job{ID: "first"}))
	assert.NoError(t, q.Push(&Job{ID: "second"}))

	// Wait for processing
	time.Sleep(100 * time.Millisecond)

	// Verify processing order
	mu.Lock()
	assert.Equal(t, []string{"first", "second"}, processed)
	mu.Unlock()
}

func TestJobQueue_Close(t *testing.T) {
	logger := logrus.New()
	q := NewJobQueue(10, logger)

	// Test first close
	err := q.Close()
	assert.NoError(t, err)
	assert.True(t, q.IsClosed())

	// Test second close (should be no-op)
	err = q.Close()
	assert.NoError(t, err)
}

func TestJobQueue_PushDuringClose(t *testing.T) {
	logger := logrus.New()
	q := NewJobQueue(1, logger)

	// Hammer Push from several goroutines while the queue closes underneath
	// them; every push must resolve to an error or an accepted job, never a
	// send on the closed channel.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if err := q.Push(&Job{ID: "racer"}); errors.Is(err, ErrQueueClosed) {
					return
				}
			}
		}()
	}

	time.Sleep(time.Millisecond)
	assert.NoError(t, q.Close())
	wg.Wait()

	assert.True(t, q.IsClosed())
	assert.Equal(t, ErrQueueClosed, q.Push(&Job{ID: "late"}))
}

func TestJobQueue_AllHandlersRun(t *testing.T) {
	logger := logrus.New()
	q := NewJobQueue(10, logger)

	var wg sync.WaitGroup
	handled := 0
	var mu sync.Mutex

	// Add multiple handlers
	for i := 0; i < 3; i++ {
		wg.Add(1)
		q.Subscribe(func(job *Job) error {
			mu.Lock()
			handled++
			mu.Unlock()
			wg.Done()
			return nil
		})
	}

	// Start queue
	q.Start()

	// Push a job
	err := q.Push(&Job{ID: "shared"})
	assert.NoError(t, err)

	// Wait for all handlers
	wg.Wait()

	// Verify all handlers saw the job
	mu.Lock()
	assert.Equal(t, 3, handled)
	mu.Unlock()
}
