package sqlite

import (
	"context"
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
)

// counterDef describes one denormalized count column: how many live items
// reference the owning entity. Counts are global; per-user visibility is
// applied at query time, never baked in here.
type counterDef struct {
	table  string
	column string

	// countSQL is a correlated subquery producing the count. It may
	// reference the owning table by name.
	countSQL string
}

func junctionCount(junction, ownerCol, itemTable, itemCol, ownerTable string) string {
	return fmt.Sprintf(`(
		SELECT COUNT(*) FROM %[1]s j
		JOIN %[3]s item ON item.id = j.%[4]s AND item.deleted_at IS NULL
		WHERE j.%[2]s = %[5]s.id
	)`, junction, ownerCol, itemTable, itemCol, ownerTable)
}

func fkCount(itemTable, fkCol, ownerTable string) string {
	return fmt.Sprintf(`(
		SELECT COUNT(*) FROM %[1]s item
		WHERE item.%[2]s = %[3]s.id AND item.deleted_at IS NULL
	)`, itemTable, fkCol, ownerTable)
}

var counterDefs = map[domain.EntityType][]counterDef{
	domain.EntityPerformer: {
		{"performers", "scene_count", junctionCount("scene_performers", "performer_id", "scenes", "scene_id", "performers")},
		{"performers", "gallery_count", junctionCount("gallery_performers", "performer_id", "galleries", "gallery_id", "performers")},
		{"performers", "image_count", junctionCount("image_performers", "performer_id", "images", "image_id", "performers")},
	},
	domain.EntityTag: {
		{"tags", "scene_count", junctionCount("scene_tags", "tag_id", "scenes", "scene_id", "tags")},
		{"tags", "gallery_count", junctionCount("gallery_tags", "tag_id", "galleries", "gallery_id", "tags")},
		{"tags", "image_count", junctionCount("image_tags", "tag_id", "images", "image_id", "tags")},
	},
	domain.EntityStudio: {
		{"studios", "scene_count", fkCount("scenes", "studio_id", "studios")},
		{"studios", "gallery_count", fkCount("galleries", "studio_id", "studios")},
		{"studios", "image_count", fkCount("images", "studio_id", "studios")},
		{"studios", "group_count", fkCount("groups", "studio_id", "studios")},
	},
	domain.EntityGroup: {
		{"groups", "scene_count", junctionCount("scene_groups", "group_id", "scenes", "scene_id", "groups")},
	},
}

// RebuildCounters recomputes the denormalized reference counts for the
// given entity types, or for every countable type when scope is empty.
// Each count is one set-based UPDATE; soft-deleted referencing items are
// excluded.
func (s *Store) RebuildCounters(ctx context.Context, scope []domain.EntityType) error {
	if len(scope) == 0 {
		scope = []domain.EntityType{
			domain.EntityPerformer, domain.EntityTag,
			domain.EntityStudio, domain.EntityGroup,
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin counter transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entityType := range scope {
		for _, def := range counterDefs[entityType] {
			query := fmt.Sprintf(`UPDATE %s SET %s = %s`, def.table, def.column, def.countSQL)
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return fmt.Errorf("rebuild %s.%s: %w", def.table, def.column, err)
			}
		}
	}

	return tx.Commit()
}
