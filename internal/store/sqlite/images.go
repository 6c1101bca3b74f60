package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

const imageColumns = `t.id, t.title, t.date, t.details, t.photographer, t.url, t.studio_id,
	t.created_at, t.updated_at, t.synced_at, t.deleted_at`

func scanImage(scanner interface{ Scan(dest ...any) error }) (*domain.Image, error) {
	var img domain.Image
	var date, details, photographer, url, studioID sql.NullString
	var createdAt, updatedAt, syncedAt string
	var deletedAt sql.NullString

	err := scanner.Scan(&img.ID, &img.Title, &date, &details, &photographer, &url, &studioID,
		&createdAt, &updatedAt, &syncedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	img.Date = date.String
	img.Details = details.String
	img.Photographer = photographer.String
	img.URL = url.String
	if studioID.Valid {
		img.StudioID = &studioID.String
	}
	if img.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if img.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if img.SyncedAt, err = parseTime(syncedAt); err != nil {
		return nil, err
	}
	if img.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	img.Performers = []*domain.Performer{}
	img.Tags = []*domain.Tag{}
	img.GalleryIDs = []string{}
	return &img, nil
}

func (s *Store) getImageRows(ctx context.Context, ids []string) (map[string]*domain.Image, error) {
	out := make(map[string]*domain.Image, len(ids))
	for _, chunk := range chunkIDs(ids) {
		query := fmt.Sprintf(`SELECT %s FROM images t WHERE t.id IN (%s) AND t.deleted_at IS NULL`,
			imageColumns, placeholders(len(chunk)))
		rows, err := s.db.QueryContext(ctx, query, idArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("load images: %w", err)
		}
		for rows.Next() {
			img, err := scanImage(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[img.ID] = img
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetImagesByIDs returns fully hydrated images in the order of the given
// IDs.
func (s *Store) GetImagesByIDs(ctx context.Context, ids []string, userID string, role domain.Role) ([]*domain.Image, error) {
	images, err := s.getImageRows(ctx, ids)
	if err != nil {
		return nil, err
	}

	performers, err := s.loadJunction(ctx, "image_performers", "image_id", "performer_id", ids)
	if err != nil {
		return nil, err
	}
	tags, err := s.loadJunction(ctx, "image_tags", "image_id", "tag_id", ids)
	if err != nil {
		return nil, err
	}
	galleries, err := s.loadLiveJunction(ctx, "image_galleries", "image_id", "gallery_id", "galleries", ids)
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
	for _, img := range images {
		if img.StudioID == nil {
			continue
		}
		if _, ok := seen[*img.StudioID]; ok {
			continue
		}
		seen[*img.StudioID] = struct{}{}
		studioIDs = append(studioIDs, *img.StudioID)
	}
	studioRows, err := s.getStudioRows(ctx, studioIDs)
	if err != nil {
		return nil, err
	}

	userData, err := s.loadUserData(ctx, domain.EntityImage, ids, userID)
	if err != nil {
		return nil, err
	}

	for id, img := range images {
		img.UserData = userData[id]
		if img.StudioID != nil {
			img.Studio = studioRows[*img.StudioID]
		}
		for _, pid := range performers[id] {
			if p, ok := performerRows[pid]; ok {
				img.Performers = append(img.Performers, p)
			}
		}
		for _, tid := range tags[id] {
			if t, ok := tagRows[tid]; ok {
				img.Tags = append(img.Tags, t)
			}
		}
		img.GalleryIDs = append(img.GalleryIDs, galleries[id]...)
	}

	return orderByIDs(ids, images), nil
}

// QueryImages executes a filtered/sorted/paginated image query.
func (s *Store) QueryImages(ctx context.Context, spec *store.QuerySpec) (*store.PagedResult[*domain.Image], error) {
	return queryEntities(ctx, s, domain.EntityImage, spec, func(ctx context.Context, ids []string) ([]*domain.Image, error) {
		return s.GetImagesByIDs(ctx, ids, spec.UserID, spec.Role)
	})
}
