package tinker

import (
	"testing"

	"github.com/bledden/tinker-voice/internal/domain"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw   string
		want  domain.RunStatus
		known bool
	}{
		{"pending", domain.StatusPending, true},
		{"queued", domain.StatusPending, true},
		{"validating", domain.StatusPending, true},
		{"validating_files", domain.StatusPending, true},
		{"created", domain.StatusPending, true},
		{"running", domain.StatusRunning, true},
		{"training", domain.StatusRunning, true},
		{"in_progress", domain.StatusRunning, true},
		{"cancelling", domain.StatusRunning, true},
		{"succeeded", domain.StatusCompleted, true},
		{"completed", domain.StatusCompleted, true},
		{"failed", domain.StatusFailed, true},
		{"error", domain.StatusFailed, true},
		{"cancelled", domain.StatusCancelled, true},
		{"canceled", domain.StatusCancelled, true},

		// Unrecognized strings map to pending, never to a terminal status.
		{"warming_up", domain.StatusPending, false},
		{"", domain.StatusPending, false},
		{"SUCCEEDED", domain.StatusPending, false},
	}
	for _, tt := range tests {
		got, known := NormalizeStatus(tt.raw)
		if got != tt.want || known != tt.known {
			t.Errorf("NormalizeStatus(%q) = (%s, %v), want (%s, %v)",
				tt.raw, got, known, tt.want, tt.known)
		}
	}
}

func TestNormalizeStatus_UnknownNeverTerminal(t *testing.T) {
	for _, raw := range []string{"warming_up", "paused", "archived", "x"} {
		got, _ := NormalizeStatus(raw)
		if got.IsTerminal() {
			t.Errorf("NormalizeStatus(%q) = %s, unknown statuses must not map to a terminal state", raw, got)
		}
	}
}
