// Package tinker talks to the remote fine-tuning provider. The orchestrator
// depends only on the Client contract; the concrete transport (HTTP to the
// Tinker API) lives behind it, alongside a deterministic mock used when no
// API key is configured.
package tinker

import (
	"context"
	"time"

	"github.com/bledden/tinker-voice/internal/domain"
)

// ─── Wire Types ─────────────────────────────────────────────────────────────

// Job is the provider's view of one fine-tuning job. Status carries the raw
// provider vocabulary; NormalizeStatus maps it into domain.RunStatus.
type Job struct {
	ID         string       `json:"id"`
	Name       string       `json:"name,omitempty"`
	Status     string       `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	Progress   *JobProgress `json:"progress,omitempty"`
	ArtifactID string       `json:"artifact_id,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// JobProgress is the provider-reported training progress for a running job.
type JobProgress struct {
	CurrentStep  int      `json:"current_step"`
	TotalSteps   int      `json:"total_steps"`
	CurrentEpoch int      `json:"current_epoch"`
	TotalEpochs  int      `json:"total_epochs"`
	Loss         *float64 `json:"loss,omitempty"`
	ETASeconds   int64    `json:"eta_seconds,omitempty"`
}

// ToDomain converts a provider progress report into a domain snapshot.
func (p *JobProgress) ToDomain() domain.TrainingProgress {
	out := domain.TrainingProgress{
		CurrentStep:  p.CurrentStep,
		TotalSteps:   p.TotalSteps,
		CurrentEpoch: p.CurrentEpoch,
		TotalEpochs:  p.TotalEpochs,
		ETASeconds:   p.ETASeconds,
	}
	if p.Loss != nil {
		loss := *p.Loss
		out.Loss = &loss
	}
	return out
}

// ─── Client Contract ────────────────────────────────────────────────────────

// Client is the remote fine-tuning provider's job-management API.
// Every call is bounded by the passed context; implementations must not
// block past it.
type Client interface {
	// CreateJob registers a new fine-tuning job with the provider and
	// returns its provider-assigned identity. The provider does not begin
	// training until StartJob (or auto-starts; see implementations).
	CreateJob(ctx context.Context, cfg domain.TrainingConfig, name, datasetID string) (*Job, error)

	// StartJob kicks off (or, for auto-starting providers, confirms) the
	// job's training and returns its current state.
	StartJob(ctx context.Context, id string) (*Job, error)

	// FetchStatus returns the job's current provider-side state.
	FetchStatus(ctx context.Context, id string) (*Job, error)

	// CancelJob requests cancellation of a pending or running job.
	CancelJob(ctx context.Context, id string) (*Job, error)

	// ListJobs returns every job the provider knows for this account,
	// not just the ones created by this process.
	ListJobs(ctx context.Context) ([]Job, error)

	// Health reports provider reachability.
	Health(ctx context.Context) error
}
