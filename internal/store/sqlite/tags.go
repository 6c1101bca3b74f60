package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

const tagColumns = `t.id, t.name, t.description, t.scene_count, t.gallery_count, t.image_count,
	t.created_at, t.updated_at, t.synced_at, t.deleted_at`

func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var t domain.Tag
	var description sql.NullString
	var createdAt, updatedAt, syncedAt string
	var deletedAt sql.NullString

	err := scanner.Scan(&t.ID, &t.Name, &description,
		&t.SceneCount, &t.GalleryCount, &t.ImageCount,
		&createdAt, &updatedAt, &syncedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	t.Description = description.String
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if t.SyncedAt, err = parseTime(syncedAt); err != nil {
		return nil, err
	}
	if t.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	t.Parents = []*domain.Tag{}
	return &t, nil
}

// getTagRows loads live tag rows by ID, scalars and global counts only.
func (s *Store) getTagRows(ctx context.Context, ids []string) (map[string]*domain.Tag, error) {
	out := make(map[string]*domain.Tag, len(ids))
	for _, chunk := range chunkIDs(ids) {
		query := fmt.Sprintf(`SELECT %s FROM tags t WHERE t.id IN (%s) AND t.deleted_at IS NULL`,
			tagColumns, placeholders(len(chunk)))
		rows, err := s.db.QueryContext(ctx, query, idArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("load tags: %w", err)
		}
		for rows.Next() {
			t, err := scanTag(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[t.ID] = t
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetTagsByIDs returns hydrated tags in the order of the given IDs:
// parent tags attached, per-user overlay merged, and, for non-admin users,
// the global counters replaced with that user's visible counts.
func (s *Store) GetTagsByIDs(ctx context.Context, ids []string, userID string, role domain.Role) ([]*domain.Tag, error) {
	tags, err := s.getTagRows(ctx, ids)
	if err != nil {
		return nil, err
	}

	parents, err := s.loadJunction(ctx, "tag_relations", "child_id", "parent_id", ids)
	if err != nil {
		return nil, err
	}
	parentRows, err := s.getTagRows(ctx, relatedIDSet(parents))
	if err != nil {
		return nil, err
	}

	userData, err := s.loadUserData(ctx, domain.EntityTag, ids, userID)
	if err != nil {
		return nil, err
	}

	for id, t := range tags {
		t.UserData = userData[id]
		for _, pid := range parents[id] {
			if p, ok := parentRows[pid]; ok {
				t.Parents = append(t.Parents, p)
			}
		}
	}

	if !role.IsAdmin() && userID != "" {
		counts, err := s.loadVisibleCounts(ctx, "tags", []visExpr{
			visibleJunctionCount("scene_tags", "tag_id", "scenes", "scene_id", domain.EntityScene),
			visibleJunctionCount("gallery_tags", "tag_id", "galleries", "gallery_id", domain.EntityGallery),
			visibleJunctionCount("image_tags", "tag_id", "images", "image_id", domain.EntityImage),
		}, ids, userID)
		if err != nil {
			return nil, err
		}
		for id, t := range tags {
			if c, ok := counts[id]; ok {
				t.SceneCount, t.GalleryCount, t.ImageCount = c[0], c[1], c[2]
			}
		}
	}

	return orderByIDs(ids, tags), nil
}

// QueryTags executes a filtered/sorted/paginated tag query.
func (s *Store) QueryTags(ctx context.Context, spec *store.QuerySpec) (*store.PagedResult[*domain.Tag], error) {
	return queryEntities(ctx, s, domain.EntityTag, spec, func(ctx context.Context, ids []string) ([]*domain.Tag, error) {
		return s.GetTagsByIDs(ctx, ids, spec.UserID, spec.Role)
	})
}
