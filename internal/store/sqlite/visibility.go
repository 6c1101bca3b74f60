package sqlite

import (
	"context"
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
)

// Per-user visibility. An entity is hidden from a user when the user has
// excluded it directly, or when it inherits visibility from an excluded
// entity: items are hidden when their studio is excluded, and scenes,
// galleries and images are hidden when any of their performers is excluded.
// Admins bypass all of it.

// performerJunctions maps item types bearing performers to their junction
// table and owner column.
var performerJunctions = map[domain.EntityType]struct {
	table    string
	ownerCol string
}{
	domain.EntityScene:   {"scene_performers", "scene_id"},
	domain.EntityGallery: {"gallery_performers", "gallery_id"},
	domain.EntityImage:   {"image_performers", "image_id"},
}

// studioScoped lists item types carrying a studio_id column.
var studioScoped = map[domain.EntityType]bool{
	domain.EntityScene:   true,
	domain.EntityGallery: true,
	domain.EntityImage:   true,
	domain.EntityGroup:   true,
}

// directExclusionSQL renders the NOT EXISTS form of the direct exclusion
// check for rows of entityType aliased as alias. The single "?" binds the
// user ID.
func directExclusionSQL(entityType domain.EntityType, alias string) string {
	return fmt.Sprintf(`NOT EXISTS (
		SELECT 1 FROM user_exclusions x
		WHERE x.user_id = ? AND x.entity_type = '%s' AND x.entity_id = %s.id
	)`, entityType, alias)
}

// inheritedVisibilitySQL renders the inherited-visibility predicates for
// rows of entityType aliased as alias: the studio check when the type has a
// studio, the performer check when it has performers. Every "?" binds the
// user ID; the returned count says how many.
func inheritedVisibilitySQL(entityType domain.EntityType, alias string) ([]string, int) {
	var preds []string
	args := 0

	if studioScoped[entityType] {
		preds = append(preds, fmt.Sprintf(`(%[1]s.studio_id IS NULL OR NOT EXISTS (
			SELECT 1 FROM user_exclusions x
			WHERE x.user_id = ? AND x.entity_type = 'studio' AND x.entity_id = %[1]s.studio_id
		))`, alias))
		args++
	}

	if j, ok := performerJunctions[entityType]; ok {
		preds = append(preds, fmt.Sprintf(`NOT EXISTS (
			SELECT 1 FROM %s pj
			JOIN user_exclusions x ON x.user_id = ? AND x.entity_type = 'performer' AND x.entity_id = pj.performer_id
			WHERE pj.%s = %s.id
		)`, j.table, j.ownerCol, alias))
		args++
	}

	return preds, args
}

// visExpr is one per-user count expression over the aliased entity table
// t, with the number of "?" placeholders binding the user ID.
type visExpr struct {
	sql      string
	userArgs int
}

// visibleJunctionCount renders a count of live, user-visible items
// referencing t through a junction. Used to substitute per-user counts for
// the stored global counters when hydrating category entities for a
// non-admin user.
func visibleJunctionCount(junction, ownerCol, itemTable, itemCol string, itemType domain.EntityType) visExpr {
	vis, n := fullVisibilitySQL(itemType, "item")
	return visExpr{
		sql: fmt.Sprintf(`(
			SELECT COUNT(*) FROM %s j
			JOIN %s item ON item.id = j.%s AND item.deleted_at IS NULL
			WHERE j.%s = t.id AND %s
		)`, junction, itemTable, itemCol, ownerCol, vis),
		userArgs: n,
	}
}

// visibleFKCount is the foreign-key analogue of visibleJunctionCount.
func visibleFKCount(itemTable, fkCol string, itemType domain.EntityType) visExpr {
	vis, n := fullVisibilitySQL(itemType, "item")
	return visExpr{
		sql: fmt.Sprintf(`(
			SELECT COUNT(*) FROM %s item
			WHERE item.%s = t.id AND item.deleted_at IS NULL AND %s
		)`, itemTable, fkCol, vis),
		userArgs: n,
	}
}

// fullVisibilitySQL renders the complete visibility predicate (direct plus
// inherited) for rows of entityType aliased as alias, for use inside
// correlated subqueries such as per-user counts. Every "?" binds the user
// ID.
func fullVisibilitySQL(entityType domain.EntityType, alias string) (string, int) {
	preds := []string{directExclusionSQL(entityType, alias)}
	args := 1
	inherited, n := inheritedVisibilitySQL(entityType, alias)
	preds = append(preds, inherited...)
	args += n

	out := preds[0]
	for _, p := range preds[1:] {
		out += " AND " + p
	}
	return out, args
}

// loadVisibleCounts evaluates the given count expressions for each entity
// ID, returning id -> counts in expression order.
func (s *Store) loadVisibleCounts(ctx context.Context, table string, exprs []visExpr, ids []string, userID string) (map[string][]int, error) {
	out := make(map[string][]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	selects := ""
	var exprArgs []any
	for _, e := range exprs {
		selects += ", " + e.sql
		for i := 0; i < e.userArgs; i++ {
			exprArgs = append(exprArgs, userID)
		}
	}

	for _, chunk := range chunkIDs(ids) {
		query := fmt.Sprintf(`SELECT t.id%s FROM %s t WHERE t.id IN (%s)`,
			selects, table, placeholders(len(chunk)))
		args := make([]any, 0, len(exprArgs)+len(chunk))
		args = append(args, exprArgs...)
		args = append(args, idArgs(chunk)...)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("load visible counts from %s: %w", table, err)
		}
		for rows.Next() {
			var id string
			counts := make([]int, len(exprs))
			dest := make([]any, 0, len(exprs)+1)
			dest = append(dest, &id)
			for i := range counts {
				dest = append(dest, &counts[i])
			}
			if err := rows.Scan(dest...); err != nil {
				rows.Close()
				return nil, err
			}
			out[id] = counts
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}
