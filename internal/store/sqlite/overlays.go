package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/id"
	"github.com/mirrorapp/mirror-server/internal/store"
)

// Overlay writes. Overlay rows live independently of sync: created on
// first interaction, removed only by user action, and they survive entity
// soft-deletion.

// entityExists reports whether an entity row exists at all, soft-deleted
// or not. Overlay writes against IDs the cache has never seen are
// rejected.
func (s *Store) entityExists(ctx context.Context, entityType domain.EntityType, entityID string) (bool, error) {
	def, ok := syncDefs[entityType]
	if !ok {
		return false, fmt.Errorf("unknown entity type %q", entityType)
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, def.table), entityID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) requireEntity(ctx context.Context, entityType domain.EntityType, entityID string) error {
	exists, err := s.entityExists(ctx, entityType, entityID)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return nil
}

// SetRating upserts a user's rating (0-100) for an entity.
func (s *Store) SetRating(ctx context.Context, userID string, entityType domain.EntityType, entityID string, rating int) error {
	if err := s.requireEntity(ctx, entityType, entityID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_ratings (user_id, entity_type, entity_id, rating, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, entity_type, entity_id) DO UPDATE SET
			rating = excluded.rating,
			updated_at = excluded.updated_at`,
		userID, string(entityType), entityID, rating, formatTime(time.Now()))
	return err
}

// DeleteRating removes a user's rating. store.ErrNotFound when none exists.
func (s *Store) DeleteRating(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_ratings WHERE user_id = ? AND entity_type = ? AND entity_id = ?`,
		userID, string(entityType), entityID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetFavorite marks an entity as a favorite of the user. Idempotent.
func (s *Store) SetFavorite(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	if err := s.requireEntity(ctx, entityType, entityID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_favorites (user_id, entity_type, entity_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, entity_type, entity_id) DO NOTHING`,
		userID, string(entityType), entityID, formatTime(time.Now()))
	return err
}

// Unfavorite removes a favorite. store.ErrNotFound when none exists.
func (s *Store) Unfavorite(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_favorites WHERE user_id = ? AND entity_type = ? AND entity_id = ?`,
		userID, string(entityType), entityID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// AddView appends a view-history event and returns the user's new view
// count for the entity.
func (s *Store) AddView(ctx context.Context, userID string, entityType domain.EntityType, entityID string, viewedAt time.Time) (int, error) {
	if err := s.requireEntity(ctx, entityType, entityID); err != nil {
		return 0, err
	}
	eventID, err := id.Generate("view")
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO user_views (id, user_id, entity_type, entity_id, viewed_at)
		VALUES (?, ?, ?, ?, ?)`,
		eventID, userID, string(entityType), entityID, formatTime(viewedAt)); err != nil {
		return 0, err
	}

	var n int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_views WHERE user_id = ? AND entity_type = ? AND entity_id = ?`,
		userID, string(entityType), entityID).Scan(&n)
	return n, err
}

// AddO appends an O-counter event and returns the user's new O count for
// the entity.
func (s *Store) AddO(ctx context.Context, userID string, entityType domain.EntityType, entityID string, occurredAt time.Time) (int, error) {
	if err := s.requireEntity(ctx, entityType, entityID); err != nil {
		return 0, err
	}
	eventID, err := id.Generate("o")
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO user_o_history (id, user_id, entity_type, entity_id, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		eventID, userID, string(entityType), entityID, formatTime(occurredAt)); err != nil {
		return 0, err
	}

	var n int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_o_history WHERE user_id = ? AND entity_type = ? AND entity_id = ?`,
		userID, string(entityType), entityID).Scan(&n)
	return n, err
}

// Exclude hides an entity (and everything inheriting visibility from it)
// from the user's results. Idempotent.
func (s *Store) Exclude(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	if err := s.requireEntity(ctx, entityType, entityID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_exclusions (user_id, entity_type, entity_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, entity_type, entity_id) DO NOTHING`,
		userID, string(entityType), entityID, formatTime(time.Now()))
	return err
}

// Unexclude removes an exclusion. store.ErrNotFound when none exists.
func (s *Store) Unexclude(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_exclusions WHERE user_id = ? AND entity_type = ? AND entity_id = ?`,
		userID, string(entityType), entityID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Exclusions lists the user's exclusions, optionally limited to one entity
// type.
func (s *Store) Exclusions(ctx context.Context, userID string, entityType domain.EntityType) ([]domain.Exclusion, error) {
	query := `SELECT user_id, entity_type, entity_id, created_at FROM user_exclusions WHERE user_id = ?`
	args := []any{userID}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, string(entityType))
	}
	query += ` ORDER BY created_at, entity_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Exclusion
	for rows.Next() {
		var e domain.Exclusion
		var entityTypeStr, createdAt string
		if err := rows.Scan(&e.UserID, &entityTypeStr, &e.EntityID, &createdAt); err != nil {
			return nil, err
		}
		e.EntityType = domain.EntityType(entityTypeStr)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
