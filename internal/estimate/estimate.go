// Package estimate computes upfront cost and wall-clock estimates for a
// fine-tuning run. Pure functions only — the UI's preview and the persisted
// TrainingConfig estimates must come from the same formulas, so this is the
// single home for them.
package estimate

import (
	"fmt"
	"math"
	"time"

	"github.com/bledden/tinker-voice/internal/domain"
)

// AvgTokensPerExample is the assumed mean token count of one dataset example.
const AvgTokensPerExample = 200

// Per-1000-token training rates in USD, by tier.
var tierRates = map[domain.Tier]float64{
	domain.TierLightweightAdapter: 0.0005,
	domain.TierFull:               0.003,
}

// Fixed startup overhead (provisioning, dataset validation) by tier.
var tierOverhead = map[domain.Tier]time.Duration{
	domain.TierLightweightAdapter: 5 * time.Minute,
	domain.TierFull:               15 * time.Minute,
}

// Cost returns the estimated training cost in USD:
// datasetSize × AvgTokensPerExample × epochs × rate / 1000.
// Zero or negative datasetSize/epochs fail rather than silently returning 0,
// so upstream bugs don't hide behind a free run.
func Cost(datasetSize, epochs int, tier domain.Tier) (float64, error) {
	if datasetSize <= 0 {
		return 0, fmt.Errorf("%w: dataset size %d", domain.ErrInvalidArgument, datasetSize)
	}
	if epochs <= 0 {
		return 0, fmt.Errorf("%w: epochs %d", domain.ErrInvalidArgument, epochs)
	}
	rate, ok := tierRates[tier]
	if !ok {
		return 0, fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidArgument, tier)
	}
	tokens := float64(datasetSize) * AvgTokensPerExample * float64(epochs)
	return tokens / 1000 * rate, nil
}

// Duration returns the estimated wall-clock training time: a tier-dependent
// fixed overhead plus one minute per (datasetSize/100) × epochs.
// This is a display-facing estimate; actual duration is whatever the
// provider reports.
func Duration(datasetSize, epochs int, tier domain.Tier) (time.Duration, error) {
	if datasetSize <= 0 {
		return 0, fmt.Errorf("%w: dataset size %d", domain.ErrInvalidArgument, datasetSize)
	}
	if epochs <= 0 {
		return 0, fmt.Errorf("%w: epochs %d", domain.ErrInvalidArgument, epochs)
	}
	overhead, ok := tierOverhead[tier]
	if !ok {
		return 0, fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidArgument, tier)
	}
	variable := float64(datasetSize) / 100 * float64(epochs)
	return overhead + time.Duration(variable*float64(time.Minute)), nil
}

// HumanDuration formats d coarsely: minutes when under an hour, otherwise
// hours with one decimal.
func HumanDuration(d time.Duration) string {
	if d < time.Hour {
		mins := int(math.Round(d.Minutes()))
		if mins < 1 {
			mins = 1
		}
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	hours := d.Hours()
	if hours == math.Trunc(hours) {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%.0f hours", hours)
	}
	return fmt.Sprintf("%.1f hours", hours)
}

// Summary bundles both estimates for one prospective run.
type Summary struct {
	Cost          float64       `json:"cost"`
	Duration      time.Duration `json:"-"`
	HumanDuration string        `json:"duration"`
}

// ForRun computes cost and duration together.
func ForRun(datasetSize, epochs int, tier domain.Tier) (Summary, error) {
	cost, err := Cost(datasetSize, epochs, tier)
	if err != nil {
		return Summary{}, err
	}
	d, err := Duration(datasetSize, epochs, tier)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Cost: cost, Duration: d, HumanDuration: HumanDuration(d)}, nil
}

// Annotate fills cfg's EstimatedCost and EstimatedDuration from the shared
// formulas. The config is still the caller's to attach to a run.
func Annotate(cfg *domain.TrainingConfig, datasetSize int) error {
	s, err := ForRun(datasetSize, cfg.Epochs, cfg.Tier)
	if err != nil {
		return err
	}
	cfg.EstimatedCost = s.Cost
	cfg.EstimatedDuration = s.HumanDuration
	return nil
}
