package domain

import (
	"testing"
	"time"
)

func TestRunStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   RunStatus
		terminal bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestRunStatus_CanTransitionTo(t *testing.T) {
	all := []RunStatus{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}

	allowed := map[RunStatus]map[RunStatus]bool{
		StatusPending: {StatusRunning: true, StatusCancelled: true},
		StatusRunning: {StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("CanTransitionTo(%s → %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTrainingProgress_MergeStepNeverDecreases(t *testing.T) {
	p := &TrainingProgress{CurrentStep: 50, TotalSteps: 100}

	p.Merge(TrainingProgress{CurrentStep: 40})
	if p.CurrentStep != 50 {
		t.Errorf("CurrentStep = %d after stale merge, want 50", p.CurrentStep)
	}

	p.Merge(TrainingProgress{CurrentStep: 60})
	if p.CurrentStep != 60 {
		t.Errorf("CurrentStep = %d, want 60", p.CurrentStep)
	}
}

func TestTrainingProgress_MergeLossDeduplicates(t *testing.T) {
	p := &TrainingProgress{}
	loss := func(v float64) *float64 { return &v }

	p.Merge(TrainingProgress{Loss: loss(2.0)})
	p.Merge(TrainingProgress{Loss: loss(2.0)}) // repeated identical read
	p.Merge(TrainingProgress{Loss: loss(1.5)})
	p.Merge(TrainingProgress{Loss: loss(1.5)})
	p.Merge(TrainingProgress{Loss: loss(1.2)})

	want := []float64{2.0, 1.5, 1.2}
	if len(p.LossHistory) != len(want) {
		t.Fatalf("LossHistory = %v, want %v", p.LossHistory, want)
	}
	for i, v := range want {
		if p.LossHistory[i] != v {
			t.Errorf("LossHistory[%d] = %f, want %f", i, p.LossHistory[i], v)
		}
	}
	if p.Loss == nil || *p.Loss != 1.2 {
		t.Errorf("Loss = %v, want 1.2", p.Loss)
	}
}

func TestTrainingProgress_MergeHistoryNeverReorders(t *testing.T) {
	p := &TrainingProgress{}
	loss := func(v float64) *float64 { return &v }

	values := []float64{3.1, 2.4, 2.6, 1.9}
	for _, v := range values {
		p.Merge(TrainingProgress{Loss: loss(v)})
	}
	for i, v := range values {
		if p.LossHistory[i] != v {
			t.Fatalf("LossHistory = %v, want append-only order %v", p.LossHistory, values)
		}
	}
}

func TestTrainingProgress_PercentComplete(t *testing.T) {
	var nilProgress *TrainingProgress
	if got := nilProgress.PercentComplete(); got != 0 {
		t.Errorf("nil PercentComplete() = %f, want 0", got)
	}

	p := &TrainingProgress{CurrentStep: 25, TotalSteps: 100}
	if got := p.PercentComplete(); got != 25 {
		t.Errorf("PercentComplete() = %f, want 25", got)
	}
}

func TestTrainingRun_Duration(t *testing.T) {
	now := time.Now()
	run := &TrainingRun{
		StartedAt:   now.Add(-10 * time.Minute),
		CompletedAt: now,
	}
	d := run.Duration()
	if d < 9*time.Minute || d > 11*time.Minute {
		t.Errorf("Duration() = %v, want ~10m", d)
	}

	unstarted := &TrainingRun{}
	if unstarted.Duration() != 0 {
		t.Errorf("Duration() of unstarted run = %v, want 0", unstarted.Duration())
	}
}

func TestTrainingRun_CloneIsIndependent(t *testing.T) {
	loss := 1.5
	run := &TrainingRun{
		ID:     "run-1",
		Status: StatusRunning,
		Progress: &TrainingProgress{
			CurrentStep: 10,
			Loss:        &loss,
			LossHistory: []float64{2.0, 1.5},
		},
		Config: TrainingConfig{LoRA: &LoRAConfig{Rank: 16, TargetModules: []string{"q_proj"}}},
	}

	cp := run.Clone()
	cp.Progress.CurrentStep = 99
	cp.Progress.LossHistory[0] = 0
	cp.Config.LoRA.Rank = 8

	if run.Progress.CurrentStep != 10 {
		t.Errorf("original CurrentStep mutated via clone: %d", run.Progress.CurrentStep)
	}
	if run.Progress.LossHistory[0] != 2.0 {
		t.Errorf("original LossHistory mutated via clone: %v", run.Progress.LossHistory)
	}
	if run.Config.LoRA.Rank != 16 {
		t.Errorf("original LoRA config mutated via clone: %d", run.Config.LoRA.Rank)
	}
}
