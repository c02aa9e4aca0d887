package tinker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bledden/tinker-voice/internal/domain"
)

// ─── Mock Provider (for development and tests without an API key) ───────────

// Mock implements Client in memory. Jobs advance deterministically: each
// FetchStatus moves a started job forward by one poll's worth of steps, and
// the job succeeds after FetchesToComplete polls. Error fields let tests
// inject failures on specific calls.
type Mock struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	fetches map[string]int

	// FetchesToComplete is how many status fetches a job survives before it
	// reports succeeded. Defaults to 5.
	FetchesToComplete int

	// TotalSteps is the step count reported for every job. Defaults to 100.
	TotalSteps int

	// Injected failures. When set, the corresponding call returns the error
	// without touching mock state.
	CreateErr error
	StartErr  error
	FetchErr  error
	CancelErr error
	ListErr   error
}

// NewMock creates a mock provider with default pacing.
func NewMock() *Mock {
	return &Mock{
		jobs:              make(map[string]*Job),
		fetches:           make(map[string]int),
		FetchesToComplete: 5,
		TotalSteps:        100,
	}
}

func (m *Mock) CreateJob(_ context.Context, cfg domain.TrainingConfig, name, datasetID string) (*Job, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if datasetID == "" {
		return nil, fmt.Errorf("provider error (400): dataset_id required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:        "ftrun-" + uuid.NewString()[:8],
		Name:      name,
		Status:    "validating",
		CreatedAt: time.Now(),
		Progress: &JobProgress{
			TotalSteps:  m.TotalSteps,
			TotalEpochs: cfg.Epochs,
		},
	}
	m.jobs[job.ID] = job
	cp := *job
	return &cp, nil
}

func (m *Mock) StartJob(_ context.Context, id string) (*Job, error) {
	if m.StartErr != nil {
		return nil, m.StartErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	job.Status = "running"
	cp := m.snapshot(job)
	return &cp, nil
}

func (m *Mock) FetchStatus(_ context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FetchErr != nil {
		return nil, m.FetchErr
	}

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}

	if job.Status == "running" {
		m.fetches[id]++
		n := m.fetches[id]

		step := n * m.TotalSteps / m.FetchesToComplete
		if step > m.TotalSteps {
			step = m.TotalSteps
		}
		loss := 2.0 / float64(n+1)
		job.Progress.CurrentStep = step
		job.Progress.Loss = &loss
		if job.Progress.TotalEpochs > 0 {
			job.Progress.CurrentEpoch = step * job.Progress.TotalEpochs / m.TotalSteps
		}
		job.Progress.ETASeconds = int64((m.FetchesToComplete - n) * 3)

		if n >= m.FetchesToComplete {
			job.Status = "succeeded"
			job.ArtifactID = "ft-model-" + id
		}
	}

	cp := m.snapshot(job)
	return &cp, nil
}

func (m *Mock) CancelJob(_ context.Context, id string) (*Job, error) {
	if m.CancelErr != nil {
		return nil, m.CancelErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
	}
	job.Status = "cancelled"
	cp := m.snapshot(job)
	return &cp, nil
}

func (m *Mock) ListJobs(_ context.Context) ([]Job, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, m.snapshot(job))
	}
	return out, nil
}

func (m *Mock) Health(_ context.Context) error { return nil }

// SetJobStatus overrides a job's raw status (and optional error/artifact),
// letting tests script provider behavior directly.
func (m *Mock) SetJobStatus(id, status, errMsg, artifactID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		job = &Job{ID: id, CreatedAt: time.Now()}
		m.jobs[id] = job
	}
	job.Status = status
	job.Error = errMsg
	job.ArtifactID = artifactID
}

// SetFetchErr injects (or clears) a FetchStatus failure. Safe to call while
// pollers are fetching.
func (m *Mock) SetFetchErr(err error) {
	m.mu.Lock()
	m.FetchErr = err
	m.mu.Unlock()
}

// FetchCount returns how many status fetches a job has served.
func (m *Mock) FetchCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[id]
}

// snapshot deep-copies a job so callers never share mock-internal state.
func (m *Mock) snapshot(job *Job) Job {
	cp := *job
	if job.Progress != nil {
		p := *job.Progress
		if job.Progress.Loss != nil {
			loss := *job.Progress.Loss
			p.Loss = &loss
		}
		cp.Progress = &p
	}
	return cp
}
