package outboxreplay

import "time"

const (
	WorkflowName        = "outbox_replay"
	ActivityReplayBatch = "outbox_replay_batch"
)

type Input struct {
	Interval time.Duration `json:"interval"`
	// MaxTicks bounds history before the workflow continues as new.
	MaxTicks int `json:"max_ticks,omitempty"`
}

type BatchResult struct {
	Delivered int `json:"delivered"`
}
