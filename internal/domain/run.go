// Package domain holds the core entities of the training-run lifecycle:
// runs, their immutable configs, progress snapshots, and the closed status
// state machine. Domain types are pure — no infrastructure dependency.
package domain

import "time"

// ─── Status State Machine ───────────────────────────────────────────────────

// RunStatus is the local, closed status vocabulary for a training run.
// Provider statuses are normalized into this enum before they touch a run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Valid reports whether s is one of the five known statuses.
func (s RunStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if the status admits no further transitions.
func (s RunStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether the transition s → next is legal.
// Legal transitions: pending→running, pending→cancelled,
// running→{completed, failed, cancelled}. Everything else is rejected.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next.IsTerminal()
	}
	return false
}

// ─── Training Tier ──────────────────────────────────────────────────────────

// Tier is the training method category. It drives the cost/time formulas.
type Tier string

const (
	// TierLightweightAdapter trains a small LoRA adapter on top of a frozen
	// base model.
	TierLightweightAdapter Tier = "lightweight-adapter"
	// TierFull updates every weight of the base model.
	TierFull Tier = "full"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierLightweightAdapter || t == TierFull
}

// ─── Training Config ────────────────────────────────────────────────────────

// LoRAConfig holds adapter hyperparameters for the lightweight-adapter tier.
type LoRAConfig struct {
	Rank          int      `json:"rank"`
	Alpha         float64  `json:"alpha"`
	Dropout       float64  `json:"dropout"`
	TargetModules []string `json:"target_modules,omitempty"`
}

// DefaultLoRAConfig returns the adapter defaults.
func DefaultLoRAConfig() LoRAConfig {
	return LoRAConfig{
		Rank:          16,
		Alpha:         32,
		Dropout:       0.05,
		TargetModules: []string{"q_proj", "v_proj"},
	}
}

// TrainingConfig describes one fine-tuning job. Immutable once attached to a
// run: the orchestrator copies it by value and never writes it back.
type TrainingConfig struct {
	ID             string      `json:"id"`
	BaseModel      string      `json:"base_model"`
	LearningRate   float64     `json:"learning_rate"`
	Epochs         int         `json:"epochs"`
	BatchSize      int         `json:"batch_size"`
	WarmupSteps    int         `json:"warmup_steps"`
	MaxSteps       int         `json:"max_steps,omitempty"`
	WeightDecay    float64     `json:"weight_decay,omitempty"`
	GradAccumSteps int         `json:"grad_accum_steps,omitempty"`
	Tier           Tier        `json:"tier"`
	LoRA           *LoRAConfig `json:"lora,omitempty"`

	// Computed by the estimator before the run is created. Persisted so the
	// UI never shows two different numbers for the same run.
	EstimatedCost     float64 `json:"estimated_cost"`
	EstimatedDuration string  `json:"estimated_duration"`
}

// ─── Progress Snapshot ──────────────────────────────────────────────────────

// TrainingProgress is the latest known step/epoch/loss/ETA data for a run.
// Present only once a run has started.
type TrainingProgress struct {
	CurrentStep  int       `json:"current_step"`
	TotalSteps   int       `json:"total_steps"`
	CurrentEpoch int       `json:"current_epoch"`
	TotalEpochs  int       `json:"total_epochs"`
	Loss         *float64  `json:"loss,omitempty"`
	LossHistory  []float64 `json:"loss_history,omitempty"`
	ETASeconds   int64     `json:"eta_seconds,omitempty"`
}

// Merge folds a newer snapshot into p. CurrentStep never decreases, and a
// loss value is appended to the history only when it differs from the last
// appended value, so repeated identical reads produce no duplicate points.
func (p *TrainingProgress) Merge(u TrainingProgress) {
	if u.CurrentStep > p.CurrentStep {
		p.CurrentStep = u.CurrentStep
	}
	if u.TotalSteps > 0 {
		p.TotalSteps = u.TotalSteps
	}
	if u.CurrentEpoch > p.CurrentEpoch {
		p.CurrentEpoch = u.CurrentEpoch
	}
	if u.TotalEpochs > 0 {
		p.TotalEpochs = u.TotalEpochs
	}
	if u.ETASeconds > 0 {
		p.ETASeconds = u.ETASeconds
	}
	if u.Loss != nil {
		loss := *u.Loss
		p.Loss = &loss
		n := len(p.LossHistory)
		if n == 0 || p.LossHistory[n-1] != loss {
			p.LossHistory = append(p.LossHistory, loss)
		}
	}
}

// PercentComplete returns completion in [0, 100], 0 when total is unknown.
func (p *TrainingProgress) PercentComplete() float64 {
	if p == nil || p.TotalSteps <= 0 {
		return 0
	}
	return float64(p.CurrentStep) / float64(p.TotalSteps) * 100
}

// ─── Training Run ───────────────────────────────────────────────────────────

// TrainingRun is one user-initiated fine-tuning job and its tracked state.
// The run exclusively owns its config; the dataset is held by reference only.
type TrainingRun struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Config      TrainingConfig    `json:"config"`
	Status      RunStatus         `json:"status"`
	DatasetID   string            `json:"dataset_id"`
	Progress    *TrainingProgress `json:"progress,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   time.Time         `json:"started_at,omitzero"`
	CompletedAt time.Time         `json:"completed_at,omitzero"`
	Error       string            `json:"error,omitempty"`
	ArtifactID  string            `json:"artifact_id,omitempty"`
}

// IsTerminal returns true if the run reached a final state.
func (r *TrainingRun) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// Duration returns training wall time so far, or total if completed.
func (r *TrainingRun) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	end := r.CompletedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.StartedAt)
}

// Clone returns a deep copy, so callers can hand out runs without exposing
// the orchestrator's internal state to mutation.
func (r *TrainingRun) Clone() TrainingRun {
	cp := *r
	if r.Progress != nil {
		p := *r.Progress
		if r.Progress.Loss != nil {
			loss := *r.Progress.Loss
			p.Loss = &loss
		}
		p.LossHistory = append([]float64(nil), r.Progress.LossHistory...)
		cp.Progress = &p
	}
	if r.Config.LoRA != nil {
		l := *r.Config.LoRA
		l.TargetModules = append([]string(nil), r.Config.LoRA.TargetModules...)
		cp.Config.LoRA = &l
	}
	return cp
}
