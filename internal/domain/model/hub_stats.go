package model

import "time"

// HubStats is the live counter snapshot served on /internal/stats and
// rendered by the top command.
type HubStats struct {
	Sessions          int           `json:"sessions"`
	Authenticated     int           `json:"authenticated"`
	Users             int           `json:"users"`
	StatusWatchers    int           `json:"status_watchers"`
	UpdatesEnqueued   uint64        `json:"updates_enqueued"`
	UpdatesDeduped    uint64        `json:"updates_deduped"`
	BatchesFlushed    uint64        `json:"batches_flushed"`
	FramesDropped     uint64        `json:"frames_dropped"`
	SequenceConflicts uint64        `json:"sequence_conflicts"`
	Uptime            time.Duration `json:"uptime"`
}
