package sqlite

import (
	"fmt"

	"github.com/mirrorapp/mirror-server/internal/domain"
)

// fieldKind selects how a logical filter field renders to SQL.
type fieldKind int

const (
	// fieldScalar is a column on the entity's own table.
	fieldScalar fieldKind = iota
	// fieldRelation is a junction-backed multi-valued relation.
	fieldRelation
	// fieldRating is the per-user rating overlay.
	fieldRating
	// fieldFavorite is the per-user favorite overlay.
	fieldFavorite
)

// fieldDef maps one logical filter field to its physical representation.
type fieldDef struct {
	kind fieldKind

	// column is the physical column for scalar fields.
	column string

	// numeric scalar fields bind comparison values as numbers so SQLite
	// compares by value rather than storage class.
	numeric bool

	// junction/ownerCol/otherCol describe relation fields.
	junction string
	ownerCol string
	otherCol string

	// hierarchical relation fields accept includes_descendants, expanding
	// the value set through the tag hierarchy before the query runs.
	hierarchical bool
}

// sortDef maps one logical sort field to an ORDER BY expression over the
// aliased entity table t. userArgs counts the "?" placeholders in the
// expression, each bound to the requesting user's ID.
type sortDef struct {
	expr     string
	userArgs int
}

// queryDef is the complete query-engine description of one entity type.
type queryDef struct {
	entityType  domain.EntityType
	table       string
	fields      map[string]fieldDef
	sorts       map[string]sortDef
	defaultSort string
}

func scalar(col string) fieldDef  { return fieldDef{kind: fieldScalar, column: col} }
func numeric(col string) fieldDef { return fieldDef{kind: fieldScalar, column: col, numeric: true} }

func relation(junction, ownerCol, otherCol string) fieldDef {
	return fieldDef{kind: fieldRelation, junction: junction, ownerCol: ownerCol, otherCol: otherCol}
}

func tagRelation(junction, ownerCol string) fieldDef {
	d := relation(junction, ownerCol, "tag_id")
	d.hierarchical = true
	return d
}

func column(col string) sortDef   { return sortDef{expr: "t." + col} }
func nocase(col string) sortDef   { return sortDef{expr: "t." + col + " COLLATE NOCASE"} }

func ratingSort(entityType domain.EntityType) sortDef {
	return sortDef{
		expr: fmt.Sprintf(`(SELECT r.rating FROM user_ratings r
			WHERE r.user_id = ? AND r.entity_type = '%s' AND r.entity_id = t.id)`, entityType),
		userArgs: 1,
	}
}

func viewCountSort(entityType domain.EntityType) sortDef {
	return sortDef{
		expr: fmt.Sprintf(`(SELECT COUNT(*) FROM user_views v
			WHERE v.user_id = ? AND v.entity_type = '%s' AND v.entity_id = t.id)`, entityType),
		userArgs: 1,
	}
}

func oCountSort(entityType domain.EntityType) sortDef {
	return sortDef{
		expr: fmt.Sprintf(`(SELECT COUNT(*) FROM user_o_history o
			WHERE o.user_id = ? AND o.entity_type = '%s' AND o.entity_id = t.id)`, entityType),
		userArgs: 1,
	}
}

// commonSorts returns the sort fields every entity type supports.
func commonSorts(entityType domain.EntityType) map[string]sortDef {
	return map[string]sortDef{
		"id":         column("id"),
		"created_at": column("created_at"),
		"updated_at": column("updated_at"),
		"rating":     ratingSort(entityType),
	}
}

func mergeSorts(base map[string]sortDef, extra map[string]sortDef) map[string]sortDef {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

var queryDefs = map[domain.EntityType]queryDef{
	domain.EntityScene: {
		entityType: domain.EntityScene,
		table:      "scenes",
		fields: map[string]fieldDef{
			"id":         scalar("id"),
			"title":      scalar("title"),
			"date":       scalar("date"),
			"details":    scalar("details"),
			"url":        scalar("url"),
			"code":       scalar("code"),
			"duration":   numeric("duration_sec"),
			"studio":     scalar("studio_id"),
			"performers": relation("scene_performers", "scene_id", "performer_id"),
			"tags":       tagRelation("scene_tags", "scene_id"),
			"groups":     relation("scene_groups", "scene_id", "group_id"),
			"galleries":  relation("scene_galleries", "scene_id", "gallery_id"),
			"rating":     {kind: fieldRating},
			"favorite":   {kind: fieldFavorite},
		},
		sorts: mergeSorts(commonSorts(domain.EntityScene), map[string]sortDef{
			"title":      nocase("title_sort"),
			"date":       column("date"),
			"duration":   column("duration_sec"),
			"view_count": viewCountSort(domain.EntityScene),
			"o_count":    oCountSort(domain.EntityScene),
		}),
		defaultSort: "title",
	},
	domain.EntityPerformer: {
		entityType: domain.EntityPerformer,
		table:      "performers",
		fields: map[string]fieldDef{
			"id":             scalar("id"),
			"name":           scalar("name"),
			"disambiguation": scalar("disambiguation"),
			"gender":         scalar("gender"),
			"birth_date":     scalar("birth_date"),
			"country":        scalar("country"),
			"details":        scalar("details"),
			"url":            scalar("url"),
			"scene_count":    numeric("scene_count"),
			"gallery_count":  numeric("gallery_count"),
			"image_count":    numeric("image_count"),
			"rating":         {kind: fieldRating},
			"favorite":       {kind: fieldFavorite},
		},
		sorts: mergeSorts(commonSorts(domain.EntityPerformer), map[string]sortDef{
			"name":          nocase("name_sort"),
			"birth_date":    column("birth_date"),
			"scene_count":   column("scene_count"),
			"gallery_count": column("gallery_count"),
			"image_count":   column("image_count"),
			"o_count":       oCountSort(domain.EntityPerformer),
		}),
		defaultSort: "name",
	},
	domain.EntityStudio: {
		entityType: domain.EntityStudio,
		table:      "studios",
		fields: map[string]fieldDef{
			"id":            scalar("id"),
			"name":          scalar("name"),
			"url":           scalar("url"),
			"details":       scalar("details"),
			"parent":        scalar("parent_id"),
			"scene_count":   numeric("scene_count"),
			"gallery_count": numeric("gallery_count"),
			"image_count":   numeric("image_count"),
			"group_count":   numeric("group_count"),
			"rating":        {kind: fieldRating},
			"favorite":      {kind: fieldFavorite},
		},
		sorts: mergeSorts(commonSorts(domain.EntityStudio), map[string]sortDef{
			"name":          nocase("name_sort"),
			"scene_count":   column("scene_count"),
			"gallery_count": column("gallery_count"),
			"image_count":   column("image_count"),
			"group_count":   column("group_count"),
		}),
		defaultSort: "name",
	},
	domain.EntityTag: {
		entityType: domain.EntityTag,
		table:      "tags",
		fields: map[string]fieldDef{
			"id":            scalar("id"),
			"name":          scalar("name"),
			"description":   scalar("description"),
			"parents":       relation("tag_relations", "child_id", "parent_id"),
			"scene_count":   numeric("scene_count"),
			"gallery_count": numeric("gallery_count"),
			"image_count":   numeric("image_count"),
			"rating":        {kind: fieldRating},
			"favorite":      {kind: fieldFavorite},
		},
		sorts: mergeSorts(commonSorts(domain.EntityTag), map[string]sortDef{
			"name":          nocase("name_sort"),
			"scene_count":   column("scene_count"),
			"gallery_count": column("gallery_count"),
			"image_count":   column("image_count"),
		}),
		defaultSort: "name",
	},
	domain.EntityGallery: {
		entityType: domain.EntityGallery,
		table:      "galleries",
		fields: map[string]fieldDef{
			"id":           scalar("id"),
			"title":        scalar("title"),
			"date":         scalar("date"),
			"details":      scalar("details"),
			"url":          scalar("url"),
			"photographer": scalar("photographer"),
			"studio":       scalar("studio_id"),
			"performers":   relation("gallery_performers", "gallery_id", "performer_id"),
			"tags":         tagRelation("gallery_tags", "gallery_id"),
			"scenes":       relation("scene_galleries", "gallery_id", "scene_id"),
			"rating":       {kind: fieldRating},
			"favorite":     {kind: fieldFavorite},
		},
		sorts: mergeSorts(commonSorts(domain.EntityGallery), map[string]sortDef{
			"title": nocase("title_sort"),
			"date":  column("date"),
		}),
		defaultSort: "title",
	},
	domain.EntityGroup: {
		entityType: domain.EntityGroup,
		table:      "groups",
		fields: map[string]fieldDef{
			"id":          scalar("id"),
			"name":        scalar("name"),
			"date":        scalar("date"),
			"details":     scalar("details"),
			"url":         scalar("url"),
			"studio":      scalar("studio_id"),
			"tags":        tagRelation("group_tags", "group_id"),
			"scene_count": numeric("scene_count"),
			"rating":      {kind: fieldRating},
			"favorite":    {kind: fieldFavorite},
		},
		sorts: mergeSorts(commonSorts(domain.EntityGroup), map[string]sortDef{
			"name":        nocase("name_sort"),
			"date":        column("date"),
			"scene_count": column("scene_count"),
		}),
		defaultSort: "name",
	},
	domain.EntityImage: {
		entityType: domain.EntityImage,
		table:      "images",
		fields: map[string]fieldDef{
			"id":           scalar("id"),
			"title":        scalar("title"),
			"date":         scalar("date"),
			"details":      scalar("details"),
			"photographer": scalar("photographer"),
			"url":          scalar("url"),
			"studio":       scalar("studio_id"),
			"performers":   relation("image_performers", "image_id", "performer_id"),
			"tags":         tagRelation("image_tags", "image_id"),
			"galleries":    relation("image_galleries", "image_id", "gallery_id"),
			"rating":       {kind: fieldRating},
			"favorite":     {kind: fieldFavorite},
		},
		sorts: mergeSorts(commonSorts(domain.EntityImage), map[string]sortDef{
			"title":      nocase("title_sort"),
			"date":       column("date"),
			"view_count": viewCountSort(domain.EntityImage),
			"o_count":    oCountSort(domain.EntityImage),
		}),
		defaultSort: "title",
	},
}
