package sqlite

import (
	"context"
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

// Hydration runs in two phases: page rows are fetched with their own
// scalars only, then relations are attached from batched IN queries keyed
// by the page's entity IDs. This avoids the join explosion of fetching an
// entity with several independent multi-valued relations in one query.

// loadJunction returns ownerID -> related IDs for the given owners,
// related IDs ordered for deterministic attachment.
func (s *Store) loadJunction(ctx context.Context, table, ownerCol, otherCol string, ownerIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ownerIDs))
	for _, chunk := range chunkIDs(ownerIDs) {
		query := fmt.Sprintf(`SELECT %[2]s, %[3]s FROM %[1]s WHERE %[2]s IN (%[4]s) ORDER BY %[3]s`,
			table, ownerCol, otherCol, placeholders(len(chunk)))
		rows, err := s.db.QueryContext(ctx, query, idArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", table, err)
		}
		for rows.Next() {
			var owner, other string
			if err := rows.Scan(&owner, &other); err != nil {
				rows.Close()
				return nil, err
			}
			out[owner] = append(out[owner], other)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// loadLiveJunction is loadJunction restricted to targets that are not
// soft-deleted. Relations attached as entity rows get this filter for free
// from the row loaders; raw ID lists need it at the junction.
func (s *Store) loadLiveJunction(ctx context.Context, table, ownerCol, otherCol, otherTable string, ownerIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ownerIDs))
	for _, chunk := range chunkIDs(ownerIDs) {
		query := fmt.Sprintf(`SELECT j.%[2]s, j.%[3]s FROM %[1]s j
			JOIN %[5]s o ON o.id = j.%[3]s AND o.deleted_at IS NULL
			WHERE j.%[2]s IN (%[4]s) ORDER BY j.%[3]s`,
			table, ownerCol, otherCol, placeholders(len(chunk)), otherTable)
		rows, err := s.db.QueryContext(ctx, query, idArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", table, err)
		}
		for rows.Next() {
			var owner, other string
			if err := rows.Scan(&owner, &other); err != nil {
				rows.Close()
				return nil, err
			}
			out[owner] = append(out[owner], other)
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// loadUserData returns the merged per-user overlay values for the given
// entities. A missing overlay row yields the zero value.
func (s *Store) loadUserData(ctx context.Context, entityType domain.EntityType, ids []string, userID string) (map[string]domain.UserData, error) {
	out := make(map[string]domain.UserData, len(ids))
	if userID == "" || len(ids) == 0 {
		return out, nil
	}

	for _, chunk := range chunkIDs(ids) {
		args := append([]any{userID, string(entityType)}, idArgs(chunk)...)
		in := placeholders(len(chunk))

		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT entity_id, rating FROM user_ratings
			WHERE user_id = ? AND entity_type = ? AND entity_id IN (%s)`, in), args...)
		if err != nil {
			return nil, fmt.Errorf("load ratings: %w", err)
		}
		for rows.Next() {
			var id string
			var rating int
			if err := rows.Scan(&id, &rating); err != nil {
				rows.Close()
				return nil, err
			}
			ud := out[id]
			ud.Rating = &rating
			out[id] = ud
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}

		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT entity_id FROM user_favorites
			WHERE user_id = ? AND entity_type = ? AND entity_id IN (%s)`, in), args...)
		if err != nil {
			return nil, fmt.Errorf("load favorites: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			ud := out[id]
			ud.Favorite = true
			out[id] = ud
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}

		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT entity_id, COUNT(*) FROM user_views
			WHERE user_id = ? AND entity_type = ? AND entity_id IN (%s)
			GROUP BY entity_id`, in), args...)
		if err != nil {
			return nil, fmt.Errorf("load view counts: %w", err)
		}
		for rows.Next() {
			var id string
			var n int
			if err := rows.Scan(&id, &n); err != nil {
				rows.Close()
				return nil, err
			}
			ud := out[id]
			ud.ViewCount = n
			out[id] = ud
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}

		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT entity_id, COUNT(*) FROM user_o_history
			WHERE user_id = ? AND entity_type = ? AND entity_id IN (%s)
			GROUP BY entity_id`, in), args...)
		if err != nil {
			return nil, fmt.Errorf("load o counts: %w", err)
		}
		for rows.Next() {
			var id string
			var n int
			if err := rows.Scan(&id, &n); err != nil {
				rows.Close()
				return nil, err
			}
			ud := out[id]
			ud.OCount = n
			out[id] = ud
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rowCloser interface {
	Close() error
	Err() error
}

func closeRows(rows rowCloser) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

// orderByIDs arranges loaded entities in the order of the requested IDs,
// dropping IDs that resolved to nothing.
func orderByIDs[T any](ids []string, byID map[string]*T) []*T {
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// relatedIDSet flattens a junction map's related sides into a unique list.
func relatedIDSet(m map[string][]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ids := range m {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// queryEntities runs the shared ID query for one entity type and hydrates
// the page with the given loader. In IDs-only mode hydration is skipped
// entirely; that mode exists for scoring/ranking callers and its results
// are never shown to a user.
func queryEntities[T any](ctx context.Context, s *Store, entityType domain.EntityType, spec *store.QuerySpec, load func(context.Context, []string) ([]*T, error)) (*store.PagedResult[*T], error) {
	ids, total, seed, err := s.queryIDs(ctx, entityType, spec)
	if err != nil {
		return nil, err
	}

	result := &store.PagedResult[*T]{
		Total:   total,
		Page:    spec.Page,
		PerPage: spec.PerPage,
		Seed:    seed,
	}
	if spec.IDsOnly {
		result.IDs = ids
		return result, nil
	}

	items, err := load(ctx, ids)
	if err != nil {
		return nil, err
	}
	result.Items = items
	return result, nil
}
