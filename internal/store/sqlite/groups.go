package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

const groupColumns = `t.id, t.name, t.date, t.details, t.url, t.studio_id, t.scene_count,
	t.created_at, t.updated_at, t.synced_at, t.deleted_at`

func scanGroup(scanner interface{ Scan(dest ...any) error }) (*domain.Group, error) {
	var g domain.Group
	var date, details, url, studioID sql.NullString
	var createdAt, updatedAt, syncedAt string
	var deletedAt sql.NullString

	err := scanner.Scan(&g.ID, &g.Name, &date, &details, &url, &studioID, &g.SceneCount,
		&createdAt, &updatedAt, &syncedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	g.Date = date.String
	g.Details = details.String
	g.URL = url.String
	if studioID.Valid {
		g.StudioID = &studioID.String
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if g.SyncedAt, err = parseTime(syncedAt); err != nil {
		return nil, err
	}
	if g.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	g.Tags = []*domain.Tag{}
	return &g, nil
}

func (s *Store) getGroupRows(ctx context.Context, ids []string) (map[string]*domain.Group, error) {
	out := make(map[string]*domain.Group, len(ids))
	for _, chunk := range chunkIDs(ids) {
		query := fmt.Sprintf(`SELECT %s FROM groups t WHERE t.id IN (%s) AND t.deleted_at IS NULL`,
			groupColumns, placeholders(len(chunk)))
		rows, err := s.db.QueryContext(ctx, query, idArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("load groups: %w", err)
		}
		for rows.Next() {
			g, err := scanGroup(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[g.ID] = g
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetGroupsByIDs returns hydrated groups in the order of the given IDs.
func (s *Store) GetGroupsByIDs(ctx context.Context, ids []string, userID string, role domain.Role) ([]*domain.Group, error) {
	groups, err := s.getGroupRows(ctx, ids)
	if err != nil {
		return nil, err
	}

	tags, err := s.loadJunction(ctx, "group_tags", "group_id", "tag_id", ids)
	if err != nil {
		return nil, err
	}
	tagRows, err := s.getTagRows(ctx, relatedIDSet(tags))
	if err != nil {
		return nil, err
	}

	var studioIDs []string
	seen := make(map[string]struct{})
	for _, g := range groups {
		if g.StudioID == nil {
			continue
		}
		if _, ok := seen[*g.StudioID]; ok {
			continue
		}
		seen[*g.StudioID] = struct{}{}
		studioIDs = append(studioIDs, *g.StudioID)
	}
	studioRows, err := s.getStudioRows(ctx, studioIDs)
	if err != nil {
		return nil, err
	}

	userData, err := s.loadUserData(ctx, domain.EntityGroup, ids, userID)
	if err != nil {
		return nil, err
	}

	for id, g := range groups {
		g.UserData = userData[id]
		if g.StudioID != nil {
			g.Studio = studioRows[*g.StudioID]
		}
		for _, tid := range tags[id] {
			if t, ok := tagRows[tid]; ok {
				g.Tags = append(g.Tags, t)
			}
		}
	}

	if !role.IsAdmin() && userID != "" {
		counts, err := s.loadVisibleCounts(ctx, "groups", []visExpr{
			visibleJunctionCount("scene_groups", "group_id", "scenes", "scene_id", domain.EntityScene),
		}, ids, userID)
		if err != nil {
			return nil, err
		}
		for id, g := range groups {
			if c, ok := counts[id]; ok {
				g.SceneCount = c[0]
			}
		}
	}

	return orderByIDs(ids, groups), nil
}

// QueryGroups executes a filtered/sorted/paginated group query.
func (s *Store) QueryGroups(ctx context.Context, spec *store.QuerySpec) (*store.PagedResult[*domain.Group], error) {
	return queryEntities(ctx, s, domain.EntityGroup, spec, func(ctx context.Context, ids []string) ([]*domain.Group, error) {
		return s.GetGroupsByIDs(ctx, ids, spec.UserID, spec.Role)
	})
}
