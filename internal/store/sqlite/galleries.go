package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

const galleryColumns = `t.id, t.title, t.date, t.details, t.url, t.photographer, t.studio_id,
	t.created_at, t.updated_at, t.synced_at, t.deleted_at`

func scanGallery(scanner interface{ Scan(dest ...any) error }) (*domain.Gallery, error) {
	var g domain.Gallery
	var date, details, url, photographer, studioID sql.NullString
	var createdAt, updatedAt, syncedAt string
	var deletedAt sql.NullString

	err := scanner.Scan(&g.ID, &g.Title, &date, &details, &url, &photographer, &studioID,
		&createdAt, &updatedAt, &syncedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	g.Date = date.String
	g.Details = details.String
	g.URL = url.String
	g.Photographer = photographer.String
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
	g.Performers = []*domain.Performer{}
	g.Tags = []*domain.Tag{}
	g.SceneIDs = []string{}
	return &g, nil
}

func (s *Store) getGalleryRows(ctx context.Context, ids []string) (map[string]*domain.Gallery, error) {
	out := make(map[string]*domain.Gallery, len(ids))
	for _, chunk := range chunkIDs(ids) {
		query := fmt.Sprintf(`SELECT %s FROM galleries t WHERE t.id IN (%s) AND t.deleted_at IS NULL`,
			galleryColumns, placeholders(len(chunk)))
		rows, err := s.db.QueryContext(ctx, query, idArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("load galleries: %w", err)
		}
		for rows.Next() {
			g, err := scanGallery(rows)
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

// GetGalleriesByIDs returns hydrated galleries in the order of the given
// IDs. ImageCount reflects live images, filtered to the user's visible set
// for non-admin requests.
func (s *Store) GetGalleriesByIDs(ctx context.Context, ids []string, userID string, role domain.Role) ([]*domain.Gallery, error) {
	galleries, err := s.getGalleryRows(ctx, ids)
	if err != nil {
		return nil, err
	}

	performers, err := s.loadJunction(ctx, "gallery_performers", "gallery_id", "performer_id", ids)
	if err != nil {
		return nil, err
	}
	tags, err := s.loadJunction(ctx, "gallery_tags", "gallery_id", "tag_id", ids)
	if err != nil {
		return nil, err
	}
	scenes, err := s.loadLiveJunction(ctx, "scene_galleries", "gallery_id", "scene_id", "scenes", ids)
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

	var studioIDs []string
	seen := make(map[string]struct{})
	for _, g := range galleries {
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

	userData, err := s.loadUserData(ctx, domain.EntityGallery, ids, userID)
	if err != nil {
		return nil, err
	}

	var imageCounts map[string][]int
	if !role.IsAdmin() && userID != "" {
		imageCounts, err = s.loadVisibleCounts(ctx, "galleries", []visExpr{
			visibleJunctionCount("image_galleries", "gallery_id", "images", "image_id", domain.EntityImage),
		}, ids, userID)
	} else {
		imageCounts, err = s.loadVisibleCounts(ctx, "galleries", []visExpr{{
			sql: `(
				SELECT COUNT(*) FROM image_galleries j
				JOIN images item ON item.id = j.image_id AND item.deleted_at IS NULL
				WHERE j.gallery_id = t.id
			)`,
		}}, ids, userID)
	}
	if err != nil {
		return nil, err
	}

	for id, g := range galleries {
		g.UserData = userData[id]
		if g.StudioID != nil {
			g.Studio = studioRows[*g.StudioID]
		}
		for _, pid := range performers[id] {
			if p, ok := performerRows[pid]; ok {
				g.Performers = append(g.Performers, p)
			}
		}
		for _, tid := range tags[id] {
			if t, ok := tagRows[tid]; ok {
				g.Tags = append(g.Tags, t)
			}
		}
		g.SceneIDs = append(g.SceneIDs, scenes[id]...)
		if c, ok := imageCounts[id]; ok {
			g.ImageCount = c[0]
		}
	}

	return orderByIDs(ids, galleries), nil
}

// QueryGalleries executes a filtered/sorted/paginated gallery query.
func (s *Store) QueryGalleries(ctx context.Context, spec *store.QuerySpec) (*store.PagedResult[*domain.Gallery], error) {
	return queryEntities(ctx, s, domain.EntityGallery, spec, func(ctx context.Context, ids []string) ([]*domain.Gallery, error) {
		return s.GetGalleriesByIDs(ctx, ids, spec.UserID, spec.Role)
	})
}
