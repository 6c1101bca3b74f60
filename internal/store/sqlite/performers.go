package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

const performerColumns = `t.id, t.name, t.disambiguation, t.gender, t.birth_date, t.country, t.details, t.url,
	t.scene_count, t.gallery_count, t.image_count,
	t.created_at, t.updated_at, t.synced_at, t.deleted_at`

func scanPerformer(scanner interface{ Scan(dest ...any) error }) (*domain.Performer, error) {
	var p domain.Performer
	var disambiguation, gender, birthDate, country, details, url sql.NullString
	var createdAt, updatedAt, syncedAt string
	var deletedAt sql.NullString

	err := scanner.Scan(&p.ID, &p.Name, &disambiguation, &gender, &birthDate, &country, &details, &url,
		&p.SceneCount, &p.GalleryCount, &p.ImageCount,
		&createdAt, &updatedAt, &syncedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	p.Disambiguation = disambiguation.String
	p.Gender = gender.String
	p.BirthDate = birthDate.String
	p.Country = country.String
	p.Details = details.String
	p.URL = url.String
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if p.SyncedAt, err = parseTime(syncedAt); err != nil {
		return nil, err
	}
	if p.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) getPerformerRows(ctx context.Context, ids []string) (map[string]*domain.Performer, error) {
	out := make(map[string]*domain.Performer, len(ids))
	for _, chunk := range chunkIDs(ids) {
		query := fmt.Sprintf(`SELECT %s FROM performers t WHERE t.id IN (%s) AND t.deleted_at IS NULL`,
			performerColumns, placeholders(len(chunk)))
		rows, err := s.db.QueryContext(ctx, query, idArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("load performers: %w", err)
		}
		for rows.Next() {
			p, err := scanPerformer(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[p.ID] = p
		}
		if err := closeRows(rows); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetPerformersByIDs returns hydrated performers in the order of the given
// IDs. Non-admin users see their visible counts in place of the global
// counters.
func (s *Store) GetPerformersByIDs(ctx context.Context, ids []string, userID string, role domain.Role) ([]*domain.Performer, error) {
	performers, err := s.getPerformerRows(ctx, ids)
	if err != nil {
		return nil, err
	}

	userData, err := s.loadUserData(ctx, domain.EntityPerformer, ids, userID)
	if err != nil {
		return nil, err
	}
	for id, p := range performers {
		p.UserData = userData[id]
	}

	if !role.IsAdmin() && userID != "" {
		counts, err := s.loadVisibleCounts(ctx, "performers", []visExpr{
			visibleJunctionCount("scene_performers", "performer_id", "scenes", "scene_id", domain.EntityScene),
			visibleJunctionCount("gallery_performers", "performer_id", "galleries", "gallery_id", domain.EntityGallery),
			visibleJunctionCount("image_performers", "performer_id", "images", "image_id", domain.EntityImage),
		}, ids, userID)
		if err != nil {
			return nil, err
		}
		for id, p := range performers {
			if c, ok := counts[id]; ok {
				p.SceneCount, p.GalleryCount, p.ImageCount = c[0], c[1], c[2]
			}
		}
	}

	return orderByIDs(ids, performers), nil
}

// QueryPerformers executes a filtered/sorted/paginated performer query.
func (s *Store) QueryPerformers(ctx context.Context, spec *store.QuerySpec) (*store.PagedResult[*domain.Performer], error) {
	return queryEntities(ctx, s, domain.EntityPerformer, spec, func(ctx context.Context, ids []string) ([]*domain.Performer, error) {
		return s.GetPerformersByIDs(ctx, ids, spec.UserID, spec.Role)
	})
}
