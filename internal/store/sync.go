package store

import "time"

// SyncEntity is one upstream record transformed into storable form: the
// scalar column values plus the full current set of outgoing relation IDs.
// The sync engine produces these; the store diffs and persists them.
type SyncEntity struct {
	ID        string
	UpdatedAt time.Time

	// Scalars maps column name to value. Every sync entity of a given type
	// carries the same key set; nil values clear the column.
	Scalars map[string]any

	// Relations maps relation name (e.g. "performers") to the complete set
	// of related entity IDs reported by upstream. Junction rows for changed
	// entities are rewritten wholesale from this set.
	Relations map[string][]string
}

// SyncBatchResult reports what one entity type's sync step changed.
type SyncBatchResult struct {
	Created     int
	Updated     int
	SoftDeleted int

	// JunctionsChanged reports whether any junction rows were rewritten,
	// which triggers the aggregate counter rebuild.
	JunctionsChanged bool
}
