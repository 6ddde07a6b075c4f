package ingest

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nicolovejoy/housing-data-v1/internal/loader"
	"github.com/nicolovejoy/housing-data-v1/internal/models"
	"github.com/nicolovejoy/housing-data-v1/internal/source"
)

// DefaultQueueSize bounds how many reload jobs may wait behind the running one
const DefaultQueueSize = 4

// JobState tracks a reload job through its lifecycle
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Job represents a single reload request
type Job struct {
	ID         string             `json:"id"`
	SourceFile string             `json:"source_file"`
	State      JobState           `json:"state"`
	Error      string             `json:"error,omitempty"`
	Report     *models.LoadReport `json:"report,omitempty"`
	EnqueuedAt time.Time          `json:"enqueued_at"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

// Invalidator flushes cached query results after a load commits
type Invalidator interface {
	Invalidate()
}

// Options contains settings for the reload manager
type Options struct {
	SourceFile string
	QueueSize  int
	Load       loader.Options
}

// Manager serializes reload runs through a job queue so that the store only
// ever sees one writer at a time
type Manager struct {
	loader      *loader.Loader
	invalidator Invalidator
	queue       *JobQueue
	logger      *logrus.Logger
	opts        Options

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewManager creates a reload manager wired to the given loader
func NewManager(ld *loader.Loader, invalidator Invalidator, opts Options, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	m := &Manager{
		loader:      ld,
		invalidator: invalidator,
		queue:       NewJobQueue(opts.QueueSize, logger),
		logger:      logger,
		opts:        opts,
		jobs:        make(map[string]*Job),
	}
	m.queue.Subscribe(m.runJob)
	return m
}

// Start launches the worker goroutine
func (m *Manager) Start() {
	m.queue.Start()
}

// Stop closes the queue; jobs already running finish, queued ones stay pending
func (m *Manager) Stop() error {
	return m.queue.Close()
}

// Enqueue registers a reload job and queues it for the worker. An empty
// sourceFile falls back to the configured default.
func (m *Manager) Enqueue(sourceFile string) (*Job, error) {
	if sourceFile == "" {
		sourceFile = m.opts.SourceFile
	}

	job := &Job{
		ID:         uuid.NewString(),
		SourceFile: sourceFile,
		State:      JobPending,
		EnqueuedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	// Snapshot before Push: once the worker sees the job it may mutate it
	accepted := *job

	if err := m.queue.Push(job); err != nil {
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"source_file": job.SourceFile,
	}).Info("Reload job queued")

	return &accepted, nil
}

// Job returns a copy of the job with the given ID
func (m *Manager) Job(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	clone := *job
	return &clone, true
}

// Jobs returns copies of all known jobs, most recently enqueued first
func (m *Manager) Jobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		clone := *job
		jobs = append(jobs, &clone)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].EnqueuedAt.Equal(jobs[j].EnqueuedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].EnqueuedAt.After(jobs[j].EnqueuedAt)
	})
	return jobs
}

// RunOnce executes a single load synchronously, bypassing the queue
func (m *Manager) RunOnce(ctx context.Context, sourceFile string) (*models.LoadReport, error) {
	if sourceFile == "" {
		sourceFile = m.opts.SourceFile
	}
	return m.execute(ctx, sourceFile)
}

// runJob is the queue handler that drives a job through its states
func (m *Manager) runJob(job *Job) error {
	m.setState(job.ID, func(j *Job) {
		now := time.Now().UTC()
		j.State = JobRunning
		j.StartedAt = &now
	})

	report, err := m.execute(context.Background(), job.SourceFile)

	m.setState(job.ID, func(j *Job) {
		now := time.Now().UTC()
		j.FinishedAt = &now
		if err != nil {
			j.State = JobFailed
			j.Error = err.Error()
			return
		}
		j.State = JobSucceeded
		j.Report = report
	})

	if err != nil {
		m.logger.WithError(err).WithField("job_id", job.ID).Error("Reload job failed")
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"inserted": report.Inserted,
		"updated":  report.Updated,
		"rejected": report.Rejected,
	}).Info("Reload job completed")
	return nil
}

// setState applies an update to a tracked job under the lock
func (m *Manager) setState(id string, update func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		update(job)
	}
}

// execute reads the source file, loads it into the store and flushes caches
func (m *Manager) execute(ctx context.Context, sourceFile string) (*models.LoadReport, error) {
	records, err := source.ReadFile(sourceFile)
	if err != nil {
		return nil, err
	}

	opts := m.opts.Load
	opts.Source = sourceFile
	report, err := m.loader.Run(ctx, records, opts)
	if err != nil {
		return nil, err
	}

	if m.invalidator != nil {
		m.invalidator.Invalidate()
	}
	return report, nil
}
