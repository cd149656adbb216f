package domain

import "time"

// RunnerStatus is the liveness state of a registered runner.
type RunnerStatus string

const (
	RunnerOnline  RunnerStatus = "Online"
	RunnerOffline RunnerStatus = "Offline"
	RunnerBusy    RunnerStatus = "Busy"
)

// Runner is a registered runner process. Registration is idempotent:
// re-registering the same id refreshes the heartbeat and capabilities.
type Runner struct {
	ID             string       `json:"id"`
	Capabilities   []string     `json:"capabilities"`
	RegisteredAt   time.Time    `json:"registered_at"`
	LastHeartbeat  time.Time    `json:"last_heartbeat"`
	Status         RunnerStatus `json:"status"`
}

// AcceptsTags reports whether every tag a pipeline requires is present
// among this runner's declared capabilities, matched as "key=value"
// strings or, failing that, as a capability equal to the tag's bare
// value. An empty tag list is always accepted.
func (r Runner) AcceptsTags(tags []Tag) bool {
	if len(tags) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(r.Capabilities))
	for _, c := range r.Capabilities {
		have[c] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := have[t.Key+"="+t.Value]; !ok {
			if _, ok := have[t.Value]; !ok {
				return false
			}
		}
	}
	return true
}
