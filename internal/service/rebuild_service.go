package service

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned when a rebuild job ID is unknown.
var ErrJobNotFound = errors.New("rebuild job not found")

// JobState is the lifecycle state of a rebuild job.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// RebuildJob is an observable snapshot of one rebuild run.
type RebuildJob struct {
	ID         string     `json:"id"`
	State      JobState   `json:"state"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RebuildLauncher starts the rebuild binary as a detached child process and
// tracks each launch as a job. Submit returns immediately; the caller polls
// Status with the returned job ID.
type RebuildLauncher struct {
	binPath string
	logPath string
	logger  *slog.Logger

	// execute runs one rebuild to completion. Overridable in tests.
	execute func() error

	mu   sync.Mutex
	jobs map[string]*RebuildJob
}

// NewRebuildLauncher creates a RebuildLauncher that runs binPath and appends
// the child's combined output to logPath.
func NewRebuildLauncher(binPath, logPath string, logger *slog.Logger) *RebuildLauncher {
	if logger == nil {
		logger = slog.Default()
	}

	l := &RebuildLauncher{
		binPath: binPath,
		logPath: logPath,
		logger:  logger,
		jobs:    make(map[string]*RebuildJob),
	}
	l.execute = l.runBinary

	return l
}

// Submit starts a rebuild in the background and returns its job snapshot.
func (l *RebuildLauncher) Submit() RebuildJob {
	job := &RebuildJob{
		ID:        uuid.NewString(),
		State:     JobStatePending,
		StartedAt: time.Now().UTC(),
	}

	// Snapshot before the goroutine starts: setState mutates job under the
	// lock as soon as run is scheduled.
	l.mu.Lock()
	l.jobs[job.ID] = job
	snapshot := *job
	l.mu.Unlock()

	go l.run(job.ID)

	return snapshot
}

// Status returns the current snapshot of the given job.
func (l *RebuildLauncher) Status(id string) (RebuildJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[id]
	if !ok {
		return RebuildJob{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	return *job, nil
}

func (l *RebuildLauncher) run(id string) {
	l.setState(id, JobStateRunning, nil)
	l.logger.Info("rebuild job started", "job_id", id)

	err := l.execute()

	if err != nil {
		l.logger.Error("rebuild job failed", "job_id", id, "error", err)
		l.setState(id, JobStateFailed, err)

		return
	}

	l.logger.Info("rebuild job finished", "job_id", id)
	l.setState(id, JobStateSucceeded, nil)
}

func (l *RebuildLauncher) setState(id string, state JobState, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[id]
	if !ok {
		return
	}

	job.State = state
	if err != nil {
		job.Error = err.Error()
	}

	if state == JobStateSucceeded || state == JobStateFailed {
		now := time.Now().UTC()
		job.FinishedAt = &now
	}
}

func (l *RebuildLauncher) runBinary() error {
	if err := os.MkdirAll(filepath.Dir(l.logPath), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	logFile, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening rebuild log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(l.binPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", l.binPath, err)
	}

	return nil
}
