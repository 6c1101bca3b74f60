package service

import (
	"fmt"
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/normalize"
	"github.com/mirrorapp/mirror-server/internal/store"
	"github.com/mirrorapp/mirror-server/internal/upstream"
)

// transformEntity maps one upstream record onto the cache's column/relation
// shape for its entity type. Every entity of a type carries the same scalar
// key set: NOT NULL columns always get a string, nullable columns get nil
// when the upstream value is empty.
func transformEntity(entityType domain.EntityType, r upstream.RawEntity) (store.SyncEntity, error) {
	if r.ID == "" {
		return store.SyncEntity{}, fmt.Errorf("record without id")
	}
	if r.UpdatedAt.IsZero() {
		return store.SyncEntity{}, fmt.Errorf("record %s without updated_at", r.ID)
	}

	e := store.SyncEntity{
		ID:        r.ID,
		UpdatedAt: r.UpdatedAt,
		Relations: map[string][]string{},
	}

	switch entityType {
	case domain.EntityTag:
		e.Scalars = map[string]any{
			"name":        r.Name,
			"name_sort":   normalize.SortKey(r.Name),
			"description": cleanOrNil(r.Description),
		}
		e.Relations["parents"] = r.ParentIDs

	case domain.EntityStudio:
		e.Scalars = map[string]any{
			"name":      r.Name,
			"name_sort": normalize.SortKey(r.Name),
			"url":       nilIfEmpty(r.URL),
			"details":   cleanOrNil(r.Details),
			"parent_id": ptrOrNil(r.ParentID),
		}

	case domain.EntityPerformer:
		e.Scalars = map[string]any{
			"name":           r.Name,
			"name_sort":      normalize.SortKey(r.Name),
			"disambiguation": nilIfEmpty(r.Disambiguation),
			"gender":         nilIfEmpty(r.Gender),
			"birth_date":     validDateOrNil(r.BirthDate),
			"country":        nilIfEmpty(r.Country),
			"details":        cleanOrNil(r.Details),
			"url":            nilIfEmpty(r.URL),
		}

	case domain.EntityGallery:
		e.Scalars = map[string]any{
			"title":        r.Title,
			"title_sort":   normalize.SortKey(r.Title),
			"date":         validDateOrNil(r.Date),
			"details":      cleanOrNil(r.Details),
			"url":          nilIfEmpty(r.URL),
			"photographer": nilIfEmpty(r.Photographer),
			"studio_id":    ptrOrNil(r.StudioID),
		}
		e.Relations["performers"] = r.PerformerIDs
		e.Relations["tags"] = r.TagIDs

	case domain.EntityGroup:
		e.Scalars = map[string]any{
			"name":      r.Name,
			"name_sort": normalize.SortKey(r.Name),
			"date":      validDateOrNil(r.Date),
			"details":   cleanOrNil(r.Details),
			"url":       nilIfEmpty(r.URL),
			"studio_id": ptrOrNil(r.StudioID),
		}
		e.Relations["tags"] = r.TagIDs

	case domain.EntityScene:
		e.Scalars = map[string]any{
			"title":        r.Title,
			"title_sort":   normalize.SortKey(r.Title),
			"date":         validDateOrNil(r.Date),
			"details":      cleanOrNil(r.Details),
			"url":          nilIfEmpty(r.URL),
			"code":         nilIfEmpty(r.Code),
			"duration_sec": positiveOrNil(r.DurationSec),
			"studio_id":    ptrOrNil(r.StudioID),
		}
		e.Relations["performers"] = r.PerformerIDs
		e.Relations["tags"] = r.TagIDs
		e.Relations["groups"] = r.GroupIDs
		e.Relations["galleries"] = r.GalleryIDs

	case domain.EntityImage:
		e.Scalars = map[string]any{
			"title":        r.Title,
			"title_sort":   normalize.SortKey(r.Title),
			"date":         validDateOrNil(r.Date),
			"details":      cleanOrNil(r.Details),
			"photographer": nilIfEmpty(r.Photographer),
			"url":          nilIfEmpty(r.URL),
			"studio_id":    ptrOrNil(r.StudioID),
		}
		e.Relations["performers"] = r.PerformerIDs
		e.Relations["tags"] = r.TagIDs
		e.Relations["galleries"] = r.GalleryIDs

	default:
		return store.SyncEntity{}, fmt.Errorf("unknown entity type %q", entityType)
	}

	return e, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// cleanOrNil strips upstream HTML markup into markdown before storing.
func cleanOrNil(s string) any {
	if s == "" {
		return nil
	}
	return upstream.CleanDescription(s)
}

func ptrOrNil(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}

func positiveOrNil(n int64) any {
	if n <= 0 {
		return nil
	}
	return n
}

// validDateOrNil keeps only dates the upstream reports as YYYY-MM-DD.
// Anything else is dropped rather than stored unsortable.
func validDateOrNil(s string) any {
	if s == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return nil
	}
	return s
}
