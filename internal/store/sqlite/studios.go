package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

const studioColumns = `t.id, t.name, t.url, t.details, t.parent_id,
	t.scene_count, t.gallery_count, t.image_count, t.group_count,
	t.created_at, t.updated_at, t.synced_at, t.deleted_at`

func scanStudio(scanner interface{ Scan(dest ...any) error }) (*domain.Studio, error) {
	var st domain.Studio
	var url, details, parentID sql.NullString
	var createdAt, updatedAt, syncedAt string
	var deletedAt sql.NullString

	err := scanner.Scan(&st.ID, &st.Name, &url, &details, &parentID,
		&st.SceneCount, &st.GalleryCount, &st.ImageCount, &st.GroupCount,
		&createdAt, &updatedAt, &syncedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	st.URL = url.String
	st.Details = details.String
	if parentID.Valid {
		st.ParentID = &parentID.String
	}
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if st.SyncedAt, err = parseTime(syncedAt); err != nil {
		return nil, err
	}
	if st.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) getStudioRows(ctx context.Context, ids []string) (map[string]*domain.Studio, error) {
	out := make(map[string]*domain.Studio, len(ids))
	for _, chunk := range chunkIDs(ids) {
		query := fmt.Sprintf(`SELECT %s FROM studios t WHERE t.id IN (%s) AND t.deleted_at IS NULL`,
			studioColumns, placeholders(len(chunk)))
		rows, err := s.db.QueryContext(ctx, query, idArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("load studios: %w", err)
		}
		for rows.Next() {
			st, err := scanStudio(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[st.ID] = st
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetStudiosByIDs returns hydrated studios in the order of the given IDs,
// with the parent studio attached one level deep.
func (s *Store) GetStudiosByIDs(ctx context.Context, ids []string, userID string, role domain.Role) ([]*domain.Studio, error) {
	studios, err := s.getStudioRows(ctx, ids)
	if err != nil {
		return nil, err
	}

	var parentIDs []string
	seen := make(map[string]struct{})
	for _, st := range studios {
		if st.ParentID == nil {
			continue
		}
		if _, ok := seen[*st.ParentID]; ok {
			continue
		}
		seen[*st.ParentID] = struct{}{}
		parentIDs = append(parentIDs, *st.ParentID)
	}
	parents, err := s.getStudioRows(ctx, parentIDs)
	if err != nil {
		return nil, err
	}

	userData, err := s.loadUserData(ctx, domain.EntityStudio, ids, userID)
	if err != nil {
		return nil, err
	}

	for id, st := range studios {
		st.UserData = userData[id]
		if st.ParentID != nil {
			st.Parent = parents[*st.ParentID]
		}
	}

	if !role.IsAdmin() && userID != "" {
		counts, err := s.loadVisibleCounts(ctx, "studios", []visExpr{
			visibleFKCount("scenes", "studio_id", domain.EntityScene),
			visibleFKCount("galleries", "studio_id", domain.EntityGallery),
			visibleFKCount("images", "studio_id", domain.EntityImage),
			visibleFKCount("groups", "studio_id", domain.EntityGroup),
		}, ids, userID)
		if err != nil {
			return nil, err
		}
		for id, st := range studios {
			if c, ok := counts[id]; ok {
				st.SceneCount, st.GalleryCount, st.ImageCount, st.GroupCount = c[0], c[1], c[2], c[3]
			}
		}
	}

	return orderByIDs(ids, studios), nil
}

// QueryStudios executes a filtered/sorted/paginated studio query.
func (s *Store) QueryStudios(ctx context.Context, spec *store.QuerySpec) (*store.PagedResult[*domain.Studio], error) {
	return queryEntities(ctx, s, domain.EntityStudio, spec, func(ctx context.Context, ids []string) ([]*domain.Studio, error) {
		return s.GetStudiosByIDs(ctx, ids, spec.UserID, spec.Role)
	})
}
