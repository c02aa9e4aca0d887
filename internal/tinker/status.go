package tinker

import "github.com/bledden/tinker-voice/internal/domain"

// statusTable maps every known provider status string to exactly one local
// status. Provider vocabulary drifts over time (new intermediate states get
// added), so anything unlisted falls back to pending — the safe default:
// assume not-yet-started rather than inventing a terminal state.
var statusTable = map[string]domain.RunStatus{
	// Not yet training
	"created":          domain.StatusPending,
	"pending":          domain.StatusPending,
	"queued":           domain.StatusPending,
	"validating":       domain.StatusPending,
	"validating_files": domain.StatusPending,

	// Training
	"running":     domain.StatusRunning,
	"training":    domain.StatusRunning,
	"in_progress": domain.StatusRunning,
	"cancelling":  domain.StatusRunning,

	// Terminal
	"succeeded": domain.StatusCompleted,
	"success":   domain.StatusCompleted,
	"completed": domain.StatusCompleted,
	"failed":    domain.StatusFailed,
	"error":     domain.StatusFailed,
	"cancelled": domain.StatusCancelled,
	"canceled":  domain.StatusCancelled,
}

// NormalizeStatus maps a raw provider status into the local closed enum.
// The second result is false when the string was unrecognized, so callers
// can log the drift; the mapped status is still usable (pending).
func NormalizeStatus(raw string) (domain.RunStatus, bool) {
	if s, ok := statusTable[raw]; ok {
		return s, true
	}
	return domain.StatusPending, false
}
