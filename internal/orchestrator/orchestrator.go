// Package orchestrator owns the lifecycle of fine-tuning runs: it creates
// and starts jobs against the Tinker provider, polls running jobs until
// they reach a terminal state, and keeps the durable run store in sync
// with what the provider reports.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bledden/tinker-voice/internal/domain"
	"github.com/bledden/tinker-voice/internal/infra/metrics"
	"github.com/bledden/tinker-voice/internal/tinker"
)

// ─── Configuration ──────────────────────────────────────────────────────────

const (
	// DefaultPollInterval is how often each running job is polled.
	DefaultPollInterval = 3 * time.Second

	// pollCallTimeout bounds a single status fetch inside the poll loop.
	pollCallTimeout = 30 * time.Second
)

// Config tunes the orchestrator. The zero value selects defaults.
type Config struct {
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// RunStore is the durable view of the run set. Implemented by
// internal/infra/sqlite.
type RunStore interface {
	Load() ([]domain.TrainingRun, string, error)
	Save(runs []domain.TrainingRun, activeID string) error
}

// ─── Orchestrator ───────────────────────────────────────────────────────────

// Orchestrator is the in-memory authority for the run set. All mutations go
// through it; the store is write-behind and the provider is reconciled via
// RefreshRuns and per-run pollers.
type Orchestrator struct {
	cfg    Config
	client tinker.Client
	store  RunStore
	log    *zap.Logger

	mu       sync.RWMutex
	runs     map[string]*domain.TrainingRun
	activeID string
	lastErr  error
	pollers  map[string]*poller

	hub *hub
	wg  sync.WaitGroup
}

// New builds an orchestrator seeded from the store. Pollers for runs that
// were mid-flight at last shutdown are not resumed here; call RefreshRuns
// to reconcile with the provider and resume them.
func New(cfg Config, client tinker.Client, store RunStore, log *zap.Logger) (*Orchestrator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:     cfg.withDefaults(),
		client:  client,
		store:   store,
		log:     log.Named("orchestrator"),
		runs:    make(map[string]*domain.TrainingRun),
		pollers: make(map[string]*poller),
		hub:     newHub(),
	}

	runs, activeID, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load run store: %w", err)
	}
	for i := range runs {
		r := runs[i]
		o.runs[r.ID] = &r
	}
	if _, ok := o.runs[activeID]; ok {
		o.activeID = activeID
	}
	live := 0
	for _, r := range o.runs {
		if !r.IsTerminal() {
			live++
		}
	}
	metrics.RunsActive.Set(float64(live))

	o.log.Info("run store loaded",
		zap.Int("runs", len(o.runs)),
		zap.String("active_run", o.activeID))
	return o, nil
}

// Close stops all pollers and waits for their loops to drain.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	for id, p := range o.pollers {
		close(p.stop)
		delete(o.pollers, id)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

// Subscribe returns a channel of run events and a cancel func. Slow
// subscribers drop intermediate events rather than blocking the poll loops.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.hub.subscribe(16)
}

// ─── Run Operations ─────────────────────────────────────────────────────────

// CreateRunInput is everything needed to register a new run.
type CreateRunInput struct {
	Name        string
	Description string
	DatasetID   string
	Config      domain.TrainingConfig
}

// CreateRun registers a new job with the provider and records it locally in
// the pending state. The run ID is provider-assigned.
func (o *Orchestrator) CreateRun(ctx context.Context, in CreateRunInput) (domain.TrainingRun, error) {
	cfg := in.Config
	if err := validateConfig(cfg, in.DatasetID); err != nil {
		o.setLastErr(err)
		return domain.TrainingRun{}, err
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Tier == domain.TierLightweightAdapter && cfg.LoRA == nil {
		lora := domain.DefaultLoRAConfig()
		cfg.LoRA = &lora
	}

	job, err := o.client.CreateJob(ctx, cfg, in.Name, in.DatasetID)
	if err != nil {
		err = fmt.Errorf("create job: %w", err)
		o.setLastErr(err)
		return domain.TrainingRun{}, err
	}

	now := time.Now().UTC()
	run := domain.TrainingRun{
		ID:          job.ID,
		Name:        in.Name,
		Description: in.Description,
		Config:      cfg,
		Status:      domain.StatusPending,
		DatasetID:   in.DatasetID,
		CreatedAt:   now,
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if job.Name != "" {
		run.Name = job.Name
	}
	if !job.CreatedAt.IsZero() {
		run.CreatedAt = job.CreatedAt.UTC()
	}

	o.mu.Lock()
	if _, exists := o.runs[run.ID]; exists {
		o.mu.Unlock()
		err := fmt.Errorf("run %s: %w", run.ID, domain.ErrRunExists)
		o.setLastErr(err)
		return domain.TrainingRun{}, err
	}
	o.runs[run.ID] = &run
	o.persistLocked()
	snapshot := run.Clone()
	o.mu.Unlock()

	metrics.RunsCreated.Inc()
	o.setLastErr(nil)
	o.hub.publish(Event{Type: EventRunCreated, Run: snapshot})
	o.log.Info("run created",
		zap.String("run_id", run.ID),
		zap.String("base_model", cfg.BaseModel),
		zap.String("tier", string(cfg.Tier)))
	return snapshot, nil
}

// StartRun moves a pending run to running, records it as the active run,
// and starts its poll loop. Starting a run in any other state fails with
// ErrInvalidTransition.
func (o *Orchestrator) StartRun(ctx context.Context, id string) (domain.TrainingRun, error) {
	o.mu.RLock()
	run, ok := o.runs[id]
	if !ok {
		o.mu.RUnlock()
		err := fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
		o.setLastErr(err)
		return domain.TrainingRun{}, err
	}
	if run.Status != domain.StatusPending {
		status := run.Status
		o.mu.RUnlock()
		err := fmt.Errorf("start run %s from %s: %w", id, status, domain.ErrInvalidTransition)
		o.setLastErr(err)
		return domain.TrainingRun{}, err
	}
	o.mu.RUnlock()

	job, err := o.client.StartJob(ctx, id)
	if err != nil {
		err = fmt.Errorf("start job %s: %w", id, err)
		o.setLastErr(err)
		return domain.TrainingRun{}, err
	}

	o.mu.Lock()
	run, ok = o.runs[id]
	if !ok || run.Status != domain.StatusPending {
		// Cancelled (or removed) while the start call was in flight.
		o.mu.Unlock()
		err := fmt.Errorf("start run %s: %w", id, domain.ErrInvalidTransition)
		o.setLastErr(err)
		return domain.TrainingRun{}, err
	}
	run.Status = domain.StatusRunning
	run.StartedAt = time.Now().UTC()
	progress := domain.TrainingProgress{
		TotalSteps:  run.Config.MaxSteps,
		TotalEpochs: run.Config.Epochs,
	}
	if job.Progress != nil {
		progress = job.Progress.ToDomain()
	}
	if progress.TotalEpochs == 0 {
		progress.TotalEpochs = run.Config.Epochs
	}
	run.Progress = &progress
	o.activeID = id
	o.persistLocked()
	snapshot := run.Clone()
	o.mu.Unlock()

	metrics.RunTransitions.WithLabelValues(string(domain.StatusRunning)).Inc()
	o.setLastErr(nil)
	o.startPoller(id)
	o.hub.publish(Event{Type: EventRunUpdated, Run: snapshot})
	o.log.Info("run started", zap.String("run_id", id))
	return snapshot, nil
}

// CancelRun cancels a pending or running run. Cancelling a run that is
// already terminal fails locally with ErrInvalidTransition and never
// reaches the provider, so retries are harmless.
func (o *Orchestrator) CancelRun(ctx context.Context, id string) (domain.TrainingRun, error) {
	o.mu.RLock()
	run, ok := o.runs[id]
	if !ok {
		o.mu.RUnlock()
		err := fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
		o.setLastErr(err)
		return domain.TrainingRun{}, err
	}
	if run.IsTerminal() {
		status := run.Status
		o.mu.RUnlock()
		err := fmt.Errorf("cancel run %s from %s: %w", id, status, domain.ErrInvalidTransition)
		o.setLastErr(err)
		return domain.TrainingRun{}, err
	}
	o.mu.RUnlock()

	if _, err := o.client.CancelJob(ctx, id); err != nil {
		err = fmt.Errorf("cancel job %s: %w", id, err)
		o.setLastErr(err)
		return domain.TrainingRun{}, err
	}

	o.mu.Lock()
	run, ok = o.runs[id]
	if !ok {
		o.mu.Unlock()
		err := fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
		o.setLastErr(err)
		return domain.TrainingRun{}, err
	}
	if !run.IsTerminal() {
		run.Status = domain.StatusCancelled
		run.CompletedAt = time.Now().UTC()
		o.persistLocked()
		metrics.RunTransitions.WithLabelValues(string(domain.StatusCancelled)).Inc()
	}
	snapshot := run.Clone()
	o.mu.Unlock()

	o.setLastErr(nil)
	o.stopPoller(id)
	o.hub.publish(Event{Type: EventRunUpdated, Run: snapshot})
	o.log.Info("run cancelled", zap.String("run_id", id))
	return snapshot, nil
}

// RefreshRuns lists all jobs from the provider and replaces the local run
// set with the server-reported snapshot. Locally held config, dataset and
// progress history survive for runs the provider still knows about; runs
// it no longer reports are dropped. Pollers are resumed for runs the
// provider says are running, which is how mid-flight runs recover after a
// daemon restart.
func (o *Orchestrator) RefreshRuns(ctx context.Context) ([]domain.TrainingRun, error) {
	jobs, err := o.client.ListJobs(ctx)
	if err != nil {
		err = fmt.Errorf("list jobs: %w", err)
		o.setLastErr(err)
		return nil, err
	}

	now := time.Now().UTC()
	var events []Event

	o.mu.Lock()
	next := make(map[string]*domain.TrainingRun, len(jobs))
	for _, job := range jobs {
		status, known := tinker.NormalizeStatus(job.Status)
		if !known {
			metrics.UnknownStatuses.Inc()
			o.log.Warn("unknown provider status, treating as pending",
				zap.String("run_id", job.ID),
				zap.String("status", job.Status))
		}

		run := &domain.TrainingRun{ID: job.ID, CreatedAt: now}
		if prev, ok := o.runs[job.ID]; ok {
			clone := prev.Clone()
			run = &clone
		}
		if run.Status != status {
			metrics.RunTransitions.WithLabelValues(string(status)).Inc()
		}
		run.Status = status
		if job.Name != "" {
			run.Name = job.Name
		}
		if !job.CreatedAt.IsZero() {
			run.CreatedAt = job.CreatedAt.UTC()
		}
		if job.ArtifactID != "" {
			run.ArtifactID = job.ArtifactID
		}
		if job.Error != "" {
			run.Error = job.Error
		}
		if job.Progress != nil {
			if run.Progress == nil {
				p := job.Progress.ToDomain()
				run.Progress = &p
			} else {
				run.Progress.Merge(job.Progress.ToDomain())
			}
		}
		if status == domain.StatusRunning && run.StartedAt.IsZero() {
			run.StartedAt = now
		}
		if run.IsTerminal() {
			if run.CompletedAt.IsZero() {
				run.CompletedAt = now
			}
		} else {
			// The server snapshot is authoritative; if it reports the run
			// live again, a locally stamped completion time is stale.
			run.CompletedAt = time.Time{}
		}
		next[run.ID] = run
		events = append(events, Event{Type: EventRunUpdated, Run: run.Clone()})
	}

	o.runs = next
	if _, ok := o.runs[o.activeID]; !ok {
		o.activeID = ""
	}

	// Reconcile pollers with the refreshed set.
	for id, p := range o.pollers {
		run, ok := o.runs[id]
		if !ok || run.IsTerminal() {
			close(p.stop)
			delete(o.pollers, id)
		}
	}
	var resume []string
	for id, run := range o.runs {
		if run.Status == domain.StatusRunning {
			if _, ok := o.pollers[id]; !ok {
				resume = append(resume, id)
			}
		}
	}
	o.persistLocked()
	snapshot := o.sortedRunsLocked()
	o.mu.Unlock()

	for _, id := range resume {
		o.startPoller(id)
	}
	for _, ev := range events {
		o.hub.publish(ev)
	}
	o.setLastErr(nil)
	o.log.Info("runs refreshed", zap.Int("runs", len(snapshot)))
	return snapshot, nil
}

// SetActiveRun marks a run as the one surfaces should foreground. It is a
// weak reference: the id is not validated against the run set (ActiveRun
// simply reports nothing while it dangles), and an empty id clears it.
func (o *Orchestrator) SetActiveRun(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activeID = id
	o.persistLocked()
}

// ─── Accessors ──────────────────────────────────────────────────────────────

// Runs returns the run set, newest first.
func (o *Orchestrator) Runs() []domain.TrainingRun {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sortedRunsLocked()
}

// Run returns a snapshot of a single run.
func (o *Orchestrator) Run(id string) (domain.TrainingRun, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	run, ok := o.runs[id]
	if !ok {
		return domain.TrainingRun{}, fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
	}
	return run.Clone(), nil
}

// ActiveRun returns the currently selected run, or ok=false when none is
// selected.
func (o *Orchestrator) ActiveRun() (domain.TrainingRun, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	run, ok := o.runs[o.activeID]
	if !ok {
		return domain.TrainingRun{}, false
	}
	return run.Clone(), true
}

// LastError reports the error from the most recent provider-facing
// operation, or nil when it succeeded.
func (o *Orchestrator) LastError() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr
}

// ─── Internals ──────────────────────────────────────────────────────────────

func validateConfig(cfg domain.TrainingConfig, datasetID string) error {
	switch {
	case cfg.BaseModel == "":
		return fmt.Errorf("base model is required: %w", domain.ErrConfigIncomplete)
	case datasetID == "":
		return fmt.Errorf("dataset is required: %w", domain.ErrConfigIncomplete)
	case cfg.Epochs <= 0:
		return fmt.Errorf("epochs must be positive: %w", domain.ErrConfigIncomplete)
	case !cfg.Tier.Valid():
		return fmt.Errorf("tier %q: %w", cfg.Tier, domain.ErrInvalidArgument)
	case cfg.LearningRate < 0 || cfg.BatchSize < 0:
		return fmt.Errorf("hyperparameters must be non-negative: %w", domain.ErrInvalidArgument)
	}
	return nil
}

func (o *Orchestrator) setLastErr(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
}

// persistLocked writes the full run set and active selection through to the
// store. Store failures are logged and counted but never fail the mutation:
// the in-memory view stays authoritative and the next write retries.
func (o *Orchestrator) persistLocked() {
	runs := o.sortedRunsLocked()
	if err := o.store.Save(runs, o.activeID); err != nil {
		metrics.StoreWriteErrors.Inc()
		o.log.Error("persist run set", zap.Error(err))
	}
	live := 0
	for i := range runs {
		if !runs[i].IsTerminal() {
			live++
		}
	}
	metrics.RunsActive.Set(float64(live))
}

func (o *Orchestrator) sortedRunsLocked() []domain.TrainingRun {
	runs := make([]domain.TrainingRun, 0, len(o.runs))
	for _, r := range o.runs {
		runs = append(runs, r.Clone())
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs
}
