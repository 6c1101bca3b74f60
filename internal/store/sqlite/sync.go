package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

// existingRow is the minimal state needed to diff one cached entity
// against its upstream counterpart.
type existingRow struct {
	updatedAt string
	deleted   bool
}

// SyncEntityBatch reconciles one entity type's table against the given
// upstream snapshot inside a single transaction. New entities are inserted,
// changed or resurrected entities are updated with their junction rows
// rewritten wholesale, and, for full syncs, cached entities absent from the
// snapshot are soft-deleted. Incremental batches never delete: only a full
// snapshot is authoritative about absence.
func (s *Store) SyncEntityBatch(ctx context.Context, entityType domain.EntityType, entities []store.SyncEntity, full bool) (store.SyncBatchResult, error) {
	def, ok := syncDefs[entityType]
	if !ok {
		return store.SyncBatchResult{}, fmt.Errorf("no sync definition for entity type %q", entityType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.SyncBatchResult{}, fmt.Errorf("begin sync transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := loadExistingRows(ctx, tx, def.table)
	if err != nil {
		return store.SyncBatchResult{}, fmt.Errorf("load existing %s rows: %w", def.table, err)
	}

	// A set relations_stale flag means a dependency type failed on an
	// earlier run while this type's junctions were rewritten, so rows
	// referencing the failed type were dropped. Only a full snapshot
	// carries every owner's relation sets, so only a full sync can repair
	// them; until then the flag stays set.
	forceRewrite := false
	if full && len(def.relations) > 0 {
		var stale int
		err := tx.QueryRowContext(ctx,
			`SELECT relations_stale FROM sync_state WHERE entity_type = ?`,
			string(entityType)).Scan(&stale)
		if err != nil && err != sql.ErrNoRows {
			return store.SyncBatchResult{}, fmt.Errorf("read %s relation staleness: %w", entityType, err)
		}
		forceRewrite = stale != 0
	}

	now := formatTime(time.Now())
	var result store.SyncBatchResult

	insertStmt, err := tx.PrepareContext(ctx, insertEntitySQL(def))
	if err != nil {
		return store.SyncBatchResult{}, err
	}
	defer insertStmt.Close()

	updateStmt, err := tx.PrepareContext(ctx, updateEntitySQL(def))
	if err != nil {
		return store.SyncBatchResult{}, err
	}
	defer updateStmt.Close()

	present := make(map[string]struct{}, len(entities))
	var rewriteIDs []string

	for _, e := range entities {
		present[e.ID] = struct{}{}
		upstreamUpdated := formatTime(e.UpdatedAt)

		prev, exists := existing[e.ID]
		switch {
		case !exists:
			args := make([]any, 0, len(def.scalarCols)+4)
			args = append(args, e.ID)
			for _, col := range def.scalarCols {
				args = append(args, e.Scalars[col])
			}
			args = append(args, now, upstreamUpdated, now)
			if _, err := insertStmt.ExecContext(ctx, args...); err != nil {
				return store.SyncBatchResult{}, fmt.Errorf("insert %s %s: %w", entityType, e.ID, err)
			}
			result.Created++
			rewriteIDs = append(rewriteIDs, e.ID)

		case prev.updatedAt != upstreamUpdated || prev.deleted:
			args := make([]any, 0, len(def.scalarCols)+3)
			for _, col := range def.scalarCols {
				args = append(args, e.Scalars[col])
			}
			args = append(args, upstreamUpdated, now, e.ID)
			if _, err := updateStmt.ExecContext(ctx, args...); err != nil {
				return store.SyncBatchResult{}, fmt.Errorf("update %s %s: %w", entityType, e.ID, err)
			}
			result.Updated++
			rewriteIDs = append(rewriteIDs, e.ID)
		}
	}

	if forceRewrite {
		rewriteIDs = rewriteIDs[:0]
		for _, e := range entities {
			rewriteIDs = append(rewriteIDs, e.ID)
		}
	}

	if len(rewriteIDs) > 0 && len(def.relations) > 0 {
		byID := make(map[string]store.SyncEntity, len(entities))
		for _, e := range entities {
			byID[e.ID] = e
		}
		if err := rewriteJunctions(ctx, tx, def, rewriteIDs, byID); err != nil {
			return store.SyncBatchResult{}, err
		}
		result.JunctionsChanged = true
	}

	if forceRewrite {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sync_state SET relations_stale = 0 WHERE entity_type = ?`,
			string(entityType)); err != nil {
			return store.SyncBatchResult{}, fmt.Errorf("clear %s relation staleness: %w", entityType, err)
		}
	}

	if full {
		var missing []string
		for id, prev := range existing {
			if prev.deleted {
				continue
			}
			if _, ok := present[id]; !ok {
				missing = append(missing, id)
			}
		}
		for _, chunk := range chunkIDs(missing) {
			query := fmt.Sprintf(`UPDATE %s SET deleted_at = ?, synced_at = ? WHERE id IN (%s)`,
				def.table, placeholders(len(chunk)))
			args := append([]any{now, now}, idArgs(chunk)...)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return store.SyncBatchResult{}, fmt.Errorf("soft delete %s: %w", def.table, err)
			}
		}
		result.SoftDeleted = len(missing)
		if result.SoftDeleted > 0 {
			result.JunctionsChanged = true
		}
	}

	if err := tx.Commit(); err != nil {
		return store.SyncBatchResult{}, fmt.Errorf("commit %s sync: %w", entityType, err)
	}
	return result, nil
}

func loadExistingRows(ctx context.Context, tx *sql.Tx, table string) (map[string]existingRow, error) {
	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, updated_at, deleted_at FROM %s`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]existingRow)
	for rows.Next() {
		var id, updatedAt string
		var deletedAt sql.NullString
		if err := rows.Scan(&id, &updatedAt, &deletedAt); err != nil {
			return nil, err
		}
		existing[id] = existingRow{updatedAt: updatedAt, deleted: deletedAt.Valid}
	}
	return existing, rows.Err()
}

func insertEntitySQL(def syncDef) string {
	cols := "id"
	for _, c := range def.scalarCols {
		cols += ", " + c
	}
	cols += ", created_at, updated_at, synced_at"
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		def.table, cols, placeholders(len(def.scalarCols)+4))
}

func updateEntitySQL(def syncDef) string {
	set := ""
	for _, c := range def.scalarCols {
		set += c + " = ?, "
	}
	return fmt.Sprintf(`UPDATE %s SET %supdated_at = ?, synced_at = ?, deleted_at = NULL WHERE id = ?`,
		def.table, set)
}

// rewriteJunctions replaces the junction rows of every changed entity with
// the upstream relation sets: delete all rows owned by the changed IDs,
// then insert the current sets. Wholesale replacement sidesteps per-row
// diffing and guarantees the cache matches upstream exactly.
func rewriteJunctions(ctx context.Context, tx *sql.Tx, def syncDef, ids []string, byID map[string]store.SyncEntity) error {
	for _, rel := range def.relations {
		for _, chunk := range chunkIDs(ids) {
			query := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`,
				rel.table, rel.ownerCol, placeholders(len(chunk)))
			if _, err := tx.ExecContext(ctx, query, idArgs(chunk)...); err != nil {
				return fmt.Errorf("clear %s: %w", rel.table, err)
			}
		}

		// The EXISTS guard drops rows whose target is missing, which can
		// happen when a dependency type's fetch failed earlier in the run.
		insert := fmt.Sprintf(
			`INSERT OR IGNORE INTO %s (%s, %s) SELECT ?, ? WHERE EXISTS (SELECT 1 FROM %s WHERE id = ?)`,
			rel.table, rel.ownerCol, rel.otherCol, rel.otherTable)
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return err
		}
		for _, id := range ids {
			for _, other := range byID[id].Relations[rel.name] {
				if _, err := stmt.ExecContext(ctx, id, other, other); err != nil {
					stmt.Close()
					return fmt.Errorf("insert %s (%s, %s): %w", rel.table, id, other, err)
				}
			}
		}
		stmt.Close()
	}
	return nil
}

// GetSyncStates returns sync bookkeeping for every entity type, including
// types never synced.
func (s *Store) GetSyncStates(ctx context.Context) ([]domain.SyncState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_type, last_synced_at, last_full_synced_at FROM sync_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byType := make(map[domain.EntityType]domain.SyncState)
	for rows.Next() {
		var entityType string
		var lastSynced, lastFull sql.NullString
		if err := rows.Scan(&entityType, &lastSynced, &lastFull); err != nil {
			return nil, err
		}
		state := domain.SyncState{EntityType: domain.EntityType(entityType)}
		if state.LastSyncedAt, err = parseNullableTime(lastSynced); err != nil {
			return nil, err
		}
		if state.LastFullSyncedAt, err = parseNullableTime(lastFull); err != nil {
			return nil, err
		}
		byType[state.EntityType] = state
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	states := make([]domain.SyncState, 0, len(domain.SyncOrder))
	for _, t := range domain.SyncOrder {
		if state, ok := byType[t]; ok {
			states = append(states, state)
		} else {
			states = append(states, domain.SyncState{EntityType: t})
		}
	}
	return states, nil
}

// MarkRelationsStale flags every entity type owning a junction that targets
// one of the failed types. Owners synced during the failed run may have had
// junction rows dropped by the missing-target guard in rewriteJunctions; the
// flag makes the next full sync of each owner rewrite relations for all of
// its entities so the cache converges once the dependency recovers.
func (s *Store) MarkRelationsStale(ctx context.Context, failed []domain.EntityType) error {
	owners := make(map[domain.EntityType]struct{})
	for _, f := range failed {
		target, ok := syncDefs[f]
		if !ok {
			continue
		}
		for ownerType, def := range syncDefs {
			for _, rel := range def.relations {
				if rel.otherTable == target.table {
					owners[ownerType] = struct{}{}
				}
			}
		}
	}
	for owner := range owners {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sync_state (entity_type, relations_stale)
			VALUES (?, 1)
			ON CONFLICT(entity_type) DO UPDATE SET relations_stale = 1`,
			string(owner))
		if err != nil {
			return fmt.Errorf("mark %s relations stale: %w", owner, err)
		}
	}
	return nil
}

// SetSyncState records a completed sync step for one entity type.
func (s *Store) SetSyncState(ctx context.Context, entityType domain.EntityType, syncedAt time.Time, full bool) error {
	ts := formatTime(syncedAt)
	if full {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sync_state (entity_type, last_synced_at, last_full_synced_at)
			VALUES (?, ?, ?)
			ON CONFLICT(entity_type) DO UPDATE SET
				last_synced_at = excluded.last_synced_at,
				last_full_synced_at = excluded.last_full_synced_at`,
			string(entityType), ts, ts)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (entity_type, last_synced_at)
		VALUES (?, ?)
		ON CONFLICT(entity_type) DO UPDATE SET
			last_synced_at = excluded.last_synced_at`,
		string(entityType), ts)
	return err
}

// RecordSyncRun persists a finished run's report for the status endpoint.
// The report is stored as JSON produced by the caller.
func (s *Store) RecordSyncRun(ctx context.Context, id string, kind domain.SyncKind, startedAt, finishedAt time.Time, reportJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, kind, started_at, finished_at, report)
		VALUES (?, ?, ?, ?, ?)`,
		id, string(kind), formatTime(startedAt), formatTime(finishedAt), reportJSON)
	return err
}

// LastSyncRun returns the most recent run's finish time and report JSON, or
// store.ErrNotFound when no run has completed yet.
func (s *Store) LastSyncRun(ctx context.Context) (time.Time, string, error) {
	var finishedAt, report string
	err := s.db.QueryRowContext(ctx, `
		SELECT finished_at, report FROM sync_runs
		ORDER BY started_at DESC LIMIT 1`).Scan(&finishedAt, &report)
	if err == sql.ErrNoRows {
		return time.Time{}, "", store.ErrNotFound
	}
	if err != nil {
		return time.Time{}, "", err
	}
	t, err := parseTime(finishedAt)
	if err != nil {
		return time.Time{}, "", err
	}
	return t, report, nil
}
