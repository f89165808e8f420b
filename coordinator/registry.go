package coordinator

import (
	"slices"
	"sync"
	"time"

	"github.com/ensemble-systems/ensemble/agent"
)

// AgentRecord is one registry entry: an agent's latest self-reported
// status and when it was received.
type AgentRecord struct {
	Status   agent.Status `json:"status"`
	LastSeen time.Time    `json:"last_seen"`
}

// registry tracks the agents known from their status heartbeats.
type registry struct {
	mu     sync.RWMutex
	agents map[string]AgentRecord
}

func newRegistry() *registry {
	return &registry{agents: make(map[string]AgentRecord)}
}

// upsert records the latest status for an agent. Last write wins.
func (r *registry) upsert(status agent.Status) {
	r.mu.Lock()
	r.agents[status.AgentID] = AgentRecord{Status: status, LastSeen: time.Now()}
	r.mu.Unlock()
}

// markBusy flips a registered agent to busy ahead of its next heartbeat
// so back-to-back assignments do not pick the same idle agent.
func (r *registry) markBusy(agentID string) {
	r.mu.Lock()
	if rec, ok := r.agents[agentID]; ok {
		rec.Status.State = agent.StateBusy
		r.agents[agentID] = rec
	}
	r.mu.Unlock()
}

// refreshCapabilities updates a known agent's capability set from a
// capability response.
func (r *registry) refreshCapabilities(agentID string, caps []agent.Capability) {
	r.mu.Lock()
	if rec, ok := r.agents[agentID]; ok {
		rec.Status.Capabilities = slices.Clone(caps)
		rec.LastSeen = time.Now()
		r.agents[agentID] = rec
	}
	r.mu.Unlock()
}

func (r *registry) get(agentID string) (AgentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.agents[agentID]
	return rec, ok
}

// snapshot returns a copy of the registry keyed by agent id.
func (r *registry) snapshot() map[string]AgentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]AgentRecord, len(r.agents))
	for id, rec := range r.agents {
		out[id] = rec
	}
	return out
}
