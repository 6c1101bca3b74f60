package sqlite

import "github.com/mirrorapp/mirror-server/internal/domain"

// relationDef describes one junction table owned by an entity type. The
// owner is always the type synced later, so the referenced side exists by
// the time junction rows are written.
type relationDef struct {
	// name is the key in SyncEntity.Relations.
	name string

	table    string
	ownerCol string
	otherCol string

	// otherTable is the referenced entity table. Junction inserts are
	// guarded on it so a dangling upstream ID (possible when a dependency
	// type's fetch failed this run) skips the row instead of failing the
	// whole batch; the next successful run restores it.
	otherTable string
}

// syncDef describes how one entity type is persisted: its table, the
// scalar columns the sync engine writes, and the junctions it owns.
type syncDef struct {
	entityType domain.EntityType
	table      string

	// scalarCols lists the updatable scalar columns, in the order the
	// transformed SyncEntity.Scalars map is read.
	scalarCols []string

	relations []relationDef
}

var syncDefs = map[domain.EntityType]syncDef{
	domain.EntityTag: {
		entityType: domain.EntityTag,
		table:      "tags",
		scalarCols: []string{"name", "name_sort", "description"},
		relations: []relationDef{
			{name: "parents", table: "tag_relations", ownerCol: "child_id", otherCol: "parent_id", otherTable: "tags"},
		},
	},
	domain.EntityStudio: {
		entityType: domain.EntityStudio,
		table:      "studios",
		scalarCols: []string{"name", "name_sort", "url", "details", "parent_id"},
	},
	domain.EntityPerformer: {
		entityType: domain.EntityPerformer,
		table:      "performers",
		scalarCols: []string{"name", "name_sort", "disambiguation", "gender", "birth_date", "country", "details", "url"},
	},
	domain.EntityGallery: {
		entityType: domain.EntityGallery,
		table:      "galleries",
		scalarCols: []string{"title", "title_sort", "date", "details", "url", "photographer", "studio_id"},
		relations: []relationDef{
			{name: "performers", table: "gallery_performers", ownerCol: "gallery_id", otherCol: "performer_id", otherTable: "performers"},
			{name: "tags", table: "gallery_tags", ownerCol: "gallery_id", otherCol: "tag_id", otherTable: "tags"},
		},
	},
	domain.EntityGroup: {
		entityType: domain.EntityGroup,
		table:      "groups",
		scalarCols: []string{"name", "name_sort", "date", "details", "url", "studio_id"},
		relations: []relationDef{
			{name: "tags", table: "group_tags", ownerCol: "group_id", otherCol: "tag_id", otherTable: "tags"},
		},
	},
	domain.EntityScene: {
		entityType: domain.EntityScene,
		table:      "scenes",
		scalarCols: []string{"title", "title_sort", "date", "details", "url", "code", "duration_sec", "studio_id"},
		relations: []relationDef{
			{name: "performers", table: "scene_performers", ownerCol: "scene_id", otherCol: "performer_id", otherTable: "performers"},
			{name: "tags", table: "scene_tags", ownerCol: "scene_id", otherCol: "tag_id", otherTable: "tags"},
			{name: "groups", table: "scene_groups", ownerCol: "scene_id", otherCol: "group_id", otherTable: "groups"},
			{name: "galleries", table: "scene_galleries", ownerCol: "scene_id", otherCol: "gallery_id", otherTable: "galleries"},
		},
	},
	domain.EntityImage: {
		entityType: domain.EntityImage,
		table:      "images",
		scalarCols: []string{"title", "title_sort", "date", "details", "photographer", "url", "studio_id"},
		relations: []relationDef{
			{name: "performers", table: "image_performers", ownerCol: "image_id", otherCol: "performer_id", otherTable: "performers"},
			{name: "tags", table: "image_tags", ownerCol: "image_id", otherCol: "tag_id", otherTable: "tags"},
			{name: "galleries", table: "image_galleries", ownerCol: "image_id", otherCol: "gallery_id", otherTable: "galleries"},
		},
	},
}
