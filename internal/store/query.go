package store

import "github.com/mirrorapp/mirror-server/internal/domain"

// Modifier selects the comparison semantics of one filter clause.
type Modifier string

// Filter modifiers. Scalar fields accept equals/not-equals/contains/is-null/
// not-null/range; relation fields accept includes-any/includes-all/excludes;
// hierarchical relation fields (tags) additionally accept
// includes-descendants, which expands the value set through the tag
// hierarchy before the query runs.
const (
	ModEquals              Modifier = "equals"
	ModNotEquals           Modifier = "not_equals"
	ModContains            Modifier = "contains"
	ModIsNull              Modifier = "is_null"
	ModNotNull             Modifier = "not_null"
	ModRange               Modifier = "range"
	ModIncludesAny         Modifier = "includes_any"
	ModIncludesAll         Modifier = "includes_all"
	ModExcludes            Modifier = "excludes"
	ModIncludesDescendants Modifier = "includes_descendants"
)

// Filter is one declarative filter clause. Values carries the comparison
// value(s) for everything except range, which uses Min/Max (either may be
// omitted for an open-ended range).
type Filter struct {
	Modifier Modifier `json:"modifier" validate:"required"`
	Values   []string `json:"values,omitempty"`
	Min      *string  `json:"min,omitempty"`
	Max      *string  `json:"max,omitempty"`
}

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	DirAsc  Direction = "asc"
	DirDesc Direction = "desc"
)

// SortRandom is the logical sort field selecting seeded random ordering.
const SortRandom = "random"

// QuerySpec is the declarative filter/sort/page specification consumed by
// the query engine. It is a plain structured value; no transport types.
type QuerySpec struct {
	Filters   map[string]Filter `json:"filters,omitempty"`
	Sort      string            `json:"sort,omitempty"`
	Direction Direction         `json:"direction,omitempty" validate:"omitempty,oneof=asc desc"`

	// Seed drives the random sort. Nil with Sort=="random" makes the engine
	// derive one (user id + time) and echo it in the result, so a single
	// request is still deterministic while sessions differ.
	Seed *int64 `json:"seed,omitempty"`

	Page    int `json:"page" validate:"gte=1"`
	PerPage int `json:"per_page" validate:"gte=1,lte=1000"`

	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`

	// IDsOnly skips hydration and returns bare IDs. For scoring/ranking use
	// only; results in this mode must never be shown to a user.
	IDsOnly bool `json:"ids_only,omitempty"`
}

// Normalize fills unset paging/direction defaults in place.
func (q *QuerySpec) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 25
	}
	if q.PerPage > 1000 {
		q.PerPage = 1000
	}
	if q.Direction == "" {
		q.Direction = DirAsc
	}
	if q.Role == "" {
		q.Role = domain.RoleUser
	}
}

// PagedResult is one page of query results plus the total count computed
// under the identical filter/overlay/exclusion predicate set.
type PagedResult[T any] struct {
	Items []T `json:"items"`

	// IDs is populated instead of Items in IDs-only mode.
	IDs []string `json:"ids,omitempty"`

	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`

	// Seed echoes the random-ordering seed in effect, generated or supplied,
	// so callers can request further pages of the same shuffle.
	Seed *int64 `json:"seed,omitempty"`
}
