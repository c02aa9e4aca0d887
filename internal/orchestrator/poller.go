package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bledden/tinker-voice/internal/infra/metrics"
	"github.com/bledden/tinker-voice/internal/tinker"
)

// ─── Poll Loop ──────────────────────────────────────────────────────────────
// One poller per running run. The loop fetches provider status on a fixed
// ticker, merges progress into the local run, and exits once the run is
// terminal or the poller is stopped.

type poller struct {
	stop chan struct{}
}

// startPoller launches the poll loop for id. A no-op if one is already
// running.
func (o *Orchestrator) startPoller(id string) {
	o.mu.Lock()
	if _, ok := o.pollers[id]; ok {
		o.mu.Unlock()
		return
	}
	p := &poller{stop: make(chan struct{})}
	o.pollers[id] = p
	o.mu.Unlock()

	o.wg.Add(1)
	go o.pollLoop(id, p)
}

// stopPoller signals the run's poll loop to exit. It does not wait for the
// loop to drain; an in-flight tick observes the run's terminal state under
// the lock and drops its update.
func (o *Orchestrator) stopPoller(id string) {
	o.mu.Lock()
	p, ok := o.pollers[id]
	if ok {
		delete(o.pollers, id)
	}
	o.mu.Unlock()
	if ok {
		close(p.stop)
	}
}

func (o *Orchestrator) pollLoop(id string, p *poller) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	log := o.log.With(zap.String("run_id", id))
	log.Debug("poller started", zap.Duration("interval", o.cfg.PollInterval))

	for {
		select {
		case <-p.stop:
			log.Debug("poller stopped")
			return
		case <-ticker.C:
			if done := o.pollOnce(id, log); done {
				o.mu.Lock()
				if cur, ok := o.pollers[id]; ok && cur == p {
					delete(o.pollers, id)
				}
				o.mu.Unlock()
				log.Debug("poller finished")
				return
			}
		}
	}
}

// pollOnce fetches the run's provider status and applies it. It reports
// true when the run has reached a terminal state and polling should stop.
// Transient fetch errors are logged and retried on the next tick.
func (o *Orchestrator) pollOnce(id string, log *zap.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), pollCallTimeout)
	job, err := o.client.FetchStatus(ctx, id)
	cancel()

	metrics.Polls.Inc()
	if err != nil {
		metrics.PollErrors.Inc()
		log.Warn("poll failed", zap.Error(err))
		return false
	}

	status, known := tinker.NormalizeStatus(job.Status)
	if !known {
		metrics.UnknownStatuses.Inc()
		log.Warn("unknown provider status, treating as pending",
			zap.String("status", job.Status))
	}

	o.mu.Lock()
	run, ok := o.runs[id]
	if !ok || run.IsTerminal() {
		// Removed or cancelled while the fetch was in flight.
		o.mu.Unlock()
		return true
	}

	if job.Progress != nil {
		if run.Progress == nil {
			p := job.Progress.ToDomain()
			run.Progress = &p
		} else {
			run.Progress.Merge(job.Progress.ToDomain())
		}
	}

	changed := run.Status != status
	if changed && run.Status.CanTransitionTo(status) {
		run.Status = status
		metrics.RunTransitions.WithLabelValues(string(status)).Inc()
	}
	if run.IsTerminal() {
		run.CompletedAt = time.Now().UTC()
		if job.ArtifactID != "" {
			run.ArtifactID = job.ArtifactID
		}
		if job.Error != "" {
			run.Error = job.Error
		}
	}
	o.persistLocked()
	snapshot := run.Clone()
	terminal := run.IsTerminal()
	o.mu.Unlock()

	o.hub.publish(Event{Type: EventRunUpdated, Run: snapshot})
	if terminal {
		log.Info("run finished",
			zap.String("status", string(snapshot.Status)),
			zap.String("artifact_id", snapshot.ArtifactID),
			zap.Duration("duration", snapshot.Duration()))
	}
	return terminal
}
