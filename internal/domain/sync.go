package domain

import "time"

// SyncKind distinguishes full from incremental sync runs.
type SyncKind string

// Sync kinds.
const (
	SyncFull        SyncKind = "full"
	SyncIncremental SyncKind = "incremental"
)

// SyncState is the sync-bookkeeping row for one entity type.
type SyncState struct {
	EntityType       EntityType `json:"entity_type"`
	LastSyncedAt     *time.Time `json:"last_synced_at,omitempty"`
	LastFullSyncedAt *time.Time `json:"last_full_synced_at,omitempty"`
}

// TypeSyncReport holds the outcome of one entity type's sync step.
type TypeSyncReport struct {
	EntityType  EntityType `json:"entity_type"`
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
	SoftDeleted int        `json:"soft_deleted"`
	Skipped     int        `json:"skipped"` // malformed upstream records
	Error       string     `json:"error,omitempty"`
}

// SyncReport summarizes one sync run. A fetch failure for one entity type
// aborts only that type's step; the rest of the run proceeds, so a report
// can mix successful and failed type steps.
type SyncReport struct {
	ID         string           `json:"id"`
	Kind       SyncKind         `json:"kind"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Types      []TypeSyncReport `json:"types"`
}

// Failed reports whether any entity type's step errored.
func (r *SyncReport) Failed() bool {
	for _, t := range r.Types {
		if t.Error != "" {
			return true
		}
	}
	return false
}

// Totals sums created/updated/soft-deleted counts across all types.
func (r *SyncReport) Totals() (created, updated, softDeleted int) {
	for _, t := range r.Types {
		created += t.Created
		updated += t.Updated
		softDeleted += t.SoftDeleted
	}
	return created, updated, softDeleted
}

// SyncStatusState describes whether a sync is currently in flight.
type SyncStatusState string

// Sync status states.
const (
	SyncIdle    SyncStatusState = "idle"
	SyncRunning SyncStatusState = "running"
)

// SyncStatus is the ops-facing view of the sync engine.
type SyncStatus struct {
	State      SyncStatusState `json:"state"`
	LastRun    *time.Time      `json:"last_run,omitempty"`
	LastReport *SyncReport     `json:"last_report,omitempty"`
}
