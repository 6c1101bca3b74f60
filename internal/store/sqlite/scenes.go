package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

const sceneColumns = `t.id, t.title, t.date, t.details, t.url, t.code, t.duration_sec, t.studio_id,
	t.created_at, t.updated_at, t.synced_at, t.deleted_at`

func scanScene(scanner interface{ Scan(dest ...any) error }) (*domain.Scene, error) {
	var sc domain.Scene
	var date, details, url, code, studioID sql.NullString
	var duration sql.NullInt64
	var createdAt, updatedAt, syncedAt string
	var deletedAt sql.NullString

	err := scanner.Scan(&sc.ID, &sc.Title, &date, &details, &url, &code, &duration, &studioID,
		&createdAt, &updatedAt, &syncedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	sc.Date = date.String
	sc.Details = details.String
	sc.URL = url.String
	sc.Code = code.String
	sc.DurationSec = duration.Int64
	if studioID.Valid {
		sc.StudioID = &studioID.String
	}
	if sc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if sc.SyncedAt, err = parseTime(syncedAt); err != nil {
		return nil, err
	}
	if sc.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	sc.Performers = []*domain.Performer{}
	sc.Tags = []*domain.Tag{}
	sc.Groups = []*domain.Group{}
	sc.GalleryIDs = []string{}
	return &sc, nil
}

func (s *Store) getSceneRows(ctx context.Context, ids []string) (map[string]*domain.Scene, error) {
	out := make(map[string]*domain.Scene, len(ids))
	for _, chunk := range chunkIDs(ids) {
		query := fmt.Sprintf(`SELECT %s FROM scenes t WHERE t.id IN (%s) AND t.deleted_at IS NULL`,
			sceneColumns, placeholders(len(chunk)))
		rows, err := s.db.QueryContext(ctx, query, idArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("load scenes: %w", err)
		}
		for rows.Next() {
			sc, err := scanScene(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[sc.ID] = sc
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetScenesByIDs returns fully hydrated scenes in the order of the given
// IDs: studio, performers, tags, groups, gallery IDs, and the user's
// overlay values. Every path returning scenes goes through here; the only
// leaner variant is the query engine's explicit IDs-only mode.
func (s *Store) GetScenesByIDs(ctx context.Context, ids []string, userID string, role domain.Role) ([]*domain.Scene, error) {
	scenes, err := s.getSceneRows(ctx, ids)
	if err != nil {
		return nil, err
	}

	performers, err := s.loadJunction(ctx, "scene_performers", "scene_id", "performer_id", ids)
	if err != nil {
		return nil, err
	}
	tags, err := s.loadJunction(ctx, "scene_tags", "scene_id", "tag_id", ids)
	if err != nil {
		return nil, err
	}
	groups, err := s.loadJunction(ctx, "scene_groups", "scene_id", "group_id", ids)
	if err != nil {
		return nil, err
	}
	galleries, err := s.loadLiveJunction(ctx, "scene_galleries", "scene_id", "gallery_id", "galleries", ids)
	if err != nil {
		return nil, err
	}

	performerRows, err := s.getPerformerRows(ctx, relatedIDSet(performers))
	if err != nil {
		return nil, err
	}
	tagRows, err := s.getTagRows(ctx, relatedIDSet(tags))
	if err != nil {
		return nil, err
	}
	groupRows, err := s.getGroupRows(ctx, relatedIDSet(groups))
	if err != nil {
		return nil, err
	}

	var studioIDs []string
	seen := make(map[string]struct{})
	for _, sc := range scenes {
		if sc.StudioID == nil {
			continue
		}
		if _, ok := seen[*sc.StudioID]; ok {
			continue
		}
		seen[*sc.StudioID] = struct{}{}
		studioIDs = append(studioIDs, *sc.StudioID)
	}
	studioRows, err := s.getStudioRows(ctx, studioIDs)
	if err != nil {
		return nil, err
	}

	userData, err := s.loadUserData(ctx, domain.EntityScene, ids, userID)
	if err != nil {
		return nil, err
	}

	for id, sc := range scenes {
		sc.UserData = userData[id]
		if sc.StudioID != nil {
			sc.Studio = studioRows[*sc.StudioID]
		}
		for _, pid := range performers[id] {
			if p, ok := performerRows[pid]; ok {
				sc.Performers = append(sc.Performers, p)
			}
		}
		for _, tid := range tags[id] {
			if t, ok := tagRows[tid]; ok {
				sc.Tags = append(sc.Tags, t)
			}
		}
		for _, gid := range groups[id] {
			if g, ok := groupRows[gid]; ok {
				sc.Groups = append(sc.Groups, g)
			}
		}
		sc.GalleryIDs = append(sc.GalleryIDs, galleries[id]...)
	}

	return orderByIDs(ids, scenes), nil
}

// QueryScenes executes a filtered/sorted/paginated scene query.
func (s *Store) QueryScenes(ctx context.Context, spec *store.QuerySpec) (*store.PagedResult[*domain.Scene], error) {
	return queryEntities(ctx, s, domain.EntityScene, spec, func(ctx context.Context, ids []string) ([]*domain.Scene, error) {
		return s.GetScenesByIDs(ctx, ids, spec.UserID, spec.Role)
	})
}
