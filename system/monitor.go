package system

import (
	"log/slog"
	"sort"
	"time"

	"github.com/ensemble-systems/ensemble/agent"
	"github.com/ensemble-systems/ensemble/messaging"
	"github.com/ensemble-systems/ensemble/observability"
)

// monitor runs the periodic health and stats loops until Shutdown cancels
// the system context.
func (s *System) monitor() {
	defer s.wg.Done()

	monitorTicker := time.NewTicker(s.cfg.MonitorInterval)
	defer monitorTicker.Stop()
	statsTicker := time.NewTicker(s.cfg.StatsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-monitorTicker.C:
			s.checkHealth()
			s.pruneResults()
		case <-statsTicker.C:
			s.reportStats()
			s.flushCache()
		}
	}
}

// checkHealth pings agents that have not reported within HealthTimeout.
// A healthy agent answers the ping with a coordination response, which
// refreshes its registry entry through the coordinator.
func (s *System) checkHealth() {
	registry := s.coordinator.Registry()

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		silence := time.Since(registry[id].LastSeen)
		if silence <= s.cfg.HealthTimeout {
			continue
		}

		msg := messaging.NewCoordination(s.id, id, agent.Ping{Probe: "health"}).Build()
		if err := s.bus.Publish(msg); err != nil {
			s.logger.Warn("failed to ping agent",
				slog.String("agent_id", id),
				slog.String("error", err.Error()))
			continue
		}

		s.logger.Warn("agent silent past health timeout",
			slog.String("agent_id", id),
			slog.Duration("silence", silence))
		s.observer.OnEvent(s.ctx, observability.Event{
			Type:      EventHealthPing,
			Level:     observability.LevelWarning,
			Timestamp: time.Now(),
			Source:    s.id,
			Data: map[string]any{
				"agent_id": id,
				"silence":  silence.String(),
			},
		})
	}
}

// pruneResults drops unclaimed results older than ResultTTL. They remain in
// the store when persistence is enabled.
func (s *System) pruneResults() {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)

	s.mu.Lock()
	pruned := 0
	for taskID, pending := range s.unclaimed {
		if pending.at.Before(cutoff) {
			delete(s.unclaimed, taskID)
			pruned++
		}
	}
	s.mu.Unlock()

	if pruned > 0 {
		s.logger.Debug("pruned unclaimed results", slog.Int("count", pruned))
	}
}

// reportStats logs a system-wide snapshot and emits it as a stats event.
func (s *System) reportStats() {
	metrics := s.bus.Metrics()

	var completed, failed int64
	states := make(map[string]int)
	for _, status := range s.Status() {
		completed += status.TasksCompleted
		failed += status.TasksFailed
		states[string(status.State)]++
	}

	s.mu.Lock()
	unclaimed := len(s.unclaimed)
	s.mu.Unlock()

	submitted := s.tasksSubmitted.Load()
	received := s.resultsReceived.Load()
	uptime := time.Since(s.startedAt)

	s.logger.Info("system stats",
		slog.Int64("tasks_submitted", submitted),
		slog.Int64("results_received", received),
		slog.Int64("tasks_completed", completed),
		slog.Int64("tasks_failed", failed),
		slog.Int64("messages_published", metrics.Published),
		slog.Int64("messages_delivered", metrics.Delivered),
		slog.Int("unclaimed_results", unclaimed),
		slog.Duration("uptime", uptime))

	s.observer.OnEvent(s.ctx, observability.Event{
		Type:      EventStats,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    s.id,
		Data: map[string]any{
			"tasks_submitted":    submitted,
			"results_received":   received,
			"tasks_completed":    completed,
			"tasks_failed":       failed,
			"agent_states":       states,
			"messages_published": metrics.Published,
			"messages_delivered": metrics.Delivered,
			"messages_dropped":   metrics.Dropped,
			"handler_errors":     metrics.HandlerErrors,
			"unclaimed_results":  unclaimed,
			"uptime":             uptime.String(),
		},
	})
}

// flushCache pushes buffered results to the backing store.
func (s *System) flushCache() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Flush(s.ctx); err != nil {
		s.logger.Warn("failed to flush result cache",
			slog.String("error", err.Error()))
	}
}
