package jobs

import (
	"errors"
	"fmt"
	"sync"

	"image-stitcher/internal/domain"
)

// ErrStaleJob is returned when a superseded submission tries to finish.
var ErrStaleJob = errors.New("job superseded by a newer submission")

// ErrNotRunning is returned when finishing a job that is not running.
var ErrNotRunning = errors.New("no running job")

// Manager holds the single current job. Each Start begins a new generation;
// only the newest generation may move the job to a terminal state.
type Manager struct {
	// notifyMu orders subscriber callbacks with the writes that caused them.
	notifyMu    sync.Mutex
	mu          sync.RWMutex
	state       State
	generation  uint64
	subscribers map[int]func(domain.Job)
	nextSubID   int
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		state:       Idle{},
		subscribers: make(map[int]func(domain.Job)),
	}
}

// Start marks jobID as the running job and returns its generation. A job
// that is still running is superseded, not cancelled.
func (m *Manager) Start(jobID string) uint64 {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.state = Running{JobID: jobID}
	snapshot, subs := m.snapshotLocked()
	m.mu.Unlock()

	notify(subs, snapshot)
	return gen
}

// Complete moves generation gen to Completed.
func (m *Manager) Complete(gen uint64, outputPath, mimeType string) error {
	return m.finish(gen, func(jobID string) State {
		return Completed{JobID: jobID, OutputPath: outputPath, MimeType: mimeType}
	})
}

// Fail moves generation gen to Failed with a user-displayable message.
func (m *Manager) Fail(gen uint64, message string) error {
	return m.finish(gen, func(jobID string) State {
		return Failed{JobID: jobID, Message: message}
	})
}

func (m *Manager) finish(gen uint64, next func(jobID string) State) error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if gen != m.generation {
		current := m.generation
		m.mu.Unlock()
		return fmt.Errorf("%w: generation %d, current %d", ErrStaleJob, gen, current)
	}
	running, ok := m.state.(Running)
	if !ok {
		status := m.state.Status()
		m.mu.Unlock()
		return fmt.Errorf("%w: status is %s", ErrNotRunning, status)
	}
	m.state = next(running.JobID)
	snapshot, subs := m.snapshotLocked()
	m.mu.Unlock()

	notify(subs, snapshot)
	return nil
}

// State returns the current state value.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot(m.state, m.generation)
}

// IsRunning reports whether a submission is in flight.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.state.(Running)
	return ok
}

// Reset returns the manager to idle. In-flight submissions become stale.
func (m *Manager) Reset() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.generation++
	m.state = Idle{}
	snapshot, subs := m.snapshotLocked()
	m.mu.Unlock()

	notify(subs, snapshot)
}

// Subscribe registers fn for every committed state change and returns a
// function that removes it. fn runs on the goroutine that made the change
// and may read the manager but must not change it.
func (m *Manager) Subscribe(fn func(domain.Job)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

func (m *Manager) snapshotLocked() (domain.Job, []func(domain.Job)) {
	subs := make([]func(domain.Job), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	return Snapshot(m.state, m.generation), subs
}

func notify(subs []func(domain.Job), job domain.Job) {
	for _, fn := range subs {
		fn(job)
	}
}
