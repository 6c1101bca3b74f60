package sqlite

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

// queryBuilder accumulates the single filtered query for one entity type:
// joins, AND-combined predicates, and the order expression. The page query
// and its companion count query are rendered from the same builder so the
// total always reflects the identical predicate set.
type queryBuilder struct {
	def queryDef

	joins     []string
	joinArgs  []any
	where     []string
	whereArgs []any

	orderExpr string
	orderArgs []any
}

func (b *queryBuilder) addWhere(pred string, args ...any) {
	b.where = append(b.where, pred)
	b.whereArgs = append(b.whereArgs, args...)
}

func (b *queryBuilder) fromClause() string {
	from := b.def.table + " t"
	for _, j := range b.joins {
		from += "\n" + j
	}
	return from
}

func (b *queryBuilder) whereClause() string {
	return strings.Join(b.where, "\n  AND ")
}

// pageSQL renders the ID page query.
func (b *queryBuilder) pageSQL() (string, []any) {
	query := fmt.Sprintf("SELECT t.id FROM %s\nWHERE %s\nORDER BY %s\nLIMIT ? OFFSET ?",
		b.fromClause(), b.whereClause(), b.orderExpr)
	args := make([]any, 0, len(b.joinArgs)+len(b.whereArgs)+len(b.orderArgs)+2)
	args = append(args, b.joinArgs...)
	args = append(args, b.whereArgs...)
	args = append(args, b.orderArgs...)
	return query, args
}

// countSQL renders the companion total query over the same predicate set.
func (b *queryBuilder) countSQL() (string, []any) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s\nWHERE %s", b.fromClause(), b.whereClause())
	args := make([]any, 0, len(b.joinArgs)+len(b.whereArgs))
	args = append(args, b.joinArgs...)
	args = append(args, b.whereArgs...)
	return query, args
}

// queryIDs runs the filtered/sorted/paginated ID query for one entity type
// and its matching count. It returns the page of IDs in order, the total
// under the same predicates, and the random seed in effect (nil for
// non-random sorts).
func (s *Store) queryIDs(ctx context.Context, entityType domain.EntityType, spec *store.QuerySpec) ([]string, int, *int64, error) {
	spec.Normalize()

	ready, err := s.CacheReady(ctx)
	if err != nil {
		return nil, 0, nil, err
	}
	if !ready {
		return nil, 0, nil, store.ErrCacheNotReady
	}

	def, ok := queryDefs[entityType]
	if !ok {
		return nil, 0, nil, fmt.Errorf("%w: no query definition for %q", store.ErrInvalidFilter, entityType)
	}

	b := &queryBuilder{def: def}
	b.addWhere("t.deleted_at IS NULL")

	if !spec.Role.IsAdmin() && spec.UserID != "" {
		// Direct exclusions join-then-filter; inherited visibility as
		// predicates.
		b.joins = append(b.joins, fmt.Sprintf(
			`LEFT JOIN user_exclusions ex ON ex.user_id = ? AND ex.entity_type = '%s' AND ex.entity_id = t.id`,
			entityType))
		b.joinArgs = append(b.joinArgs, spec.UserID)
		b.addWhere("ex.entity_id IS NULL")

		preds, n := inheritedVisibilitySQL(entityType, "t")
		for _, p := range preds {
			b.where = append(b.where, p)
		}
		for i := 0; i < n; i++ {
			b.whereArgs = append(b.whereArgs, spec.UserID)
		}
	}

	// Stable filter order keeps the rendered SQL deterministic.
	fieldNames := make([]string, 0, len(spec.Filters))
	for name := range spec.Filters {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)
	for _, name := range fieldNames {
		if err := s.applyFilter(ctx, b, entityType, name, spec.Filters[name], spec.UserID); err != nil {
			return nil, 0, nil, err
		}
	}

	seed, err := s.applySort(b, entityType, spec)
	if err != nil {
		return nil, 0, nil, err
	}

	pageQuery, pageArgs := b.pageSQL()
	pageArgs = append(pageArgs, spec.PerPage, (spec.Page-1)*spec.PerPage)

	rows, err := s.db.QueryContext(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("query %s page: %w", entityType, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, 0, nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, nil, err
	}

	countQuery, countArgs := b.countSQL()
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, nil, fmt.Errorf("query %s count: %w", entityType, err)
	}

	return ids, total, seed, nil
}

// applySort sets the builder's ORDER BY from the spec. For random sorts it
// resolves (or derives) the seed and returns it; the key comparison and the
// id tie-breaker share the direction so flipping it yields the exact
// reverse sequence.
func (s *Store) applySort(b *queryBuilder, entityType domain.EntityType, spec *store.QuerySpec) (*int64, error) {
	dir := "ASC"
	if spec.Direction == store.DirDesc {
		dir = "DESC"
	}

	sortField := spec.Sort
	if sortField == "" {
		sortField = b.def.defaultSort
	}

	if sortField == store.SortRandom {
		var seed int64
		if spec.Seed != nil {
			seed = normalizeSeed(*spec.Seed)
		} else {
			seed = newSeed(spec.UserID)
		}
		b.orderExpr = fmt.Sprintf("%s %s, t.id %s", randomKeySQL, dir, dir)
		b.orderArgs = append(b.orderArgs, randomMult(seed))
		return &seed, nil
	}

	def, ok := b.def.sorts[sortField]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sort field %q for %s", store.ErrInvalidFilter, sortField, entityType)
	}
	b.orderExpr = fmt.Sprintf("%s %s, t.id ASC", def.expr, dir)
	for i := 0; i < def.userArgs; i++ {
		b.orderArgs = append(b.orderArgs, spec.UserID)
	}
	return nil, nil
}

// newSeed derives a session-varying seed from the user ID and the clock,
// folded into the 32-bit range.
func newSeed(userID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(userID))
	return normalizeSeed(int64(h.Sum64()) ^ time.Now().UnixNano())
}

// applyFilter renders one filter clause into the builder.
func (s *Store) applyFilter(ctx context.Context, b *queryBuilder, entityType domain.EntityType, name string, f store.Filter, userID string) error {
	def, ok := b.def.fields[name]
	if !ok {
		return fmt.Errorf("%w: unknown field %q for %s", store.ErrInvalidFilter, name, entityType)
	}

	switch def.kind {
	case fieldScalar:
		return applyScalarFilter(b, name, def, f)
	case fieldRelation:
		return s.applyRelationFilter(ctx, b, name, def, f)
	case fieldRating:
		return applyRatingFilter(b, entityType, name, f, userID)
	case fieldFavorite:
		return applyFavoriteFilter(b, entityType, name, f, userID)
	}
	return fmt.Errorf("%w: unhandled field kind for %q", store.ErrInvalidFilter, name)
}

// filterValues converts the clause's string values to bind arguments,
// parsing numbers for numeric columns so comparisons follow value order
// rather than storage-class order.
func filterValues(name string, def fieldDef, values []string) ([]any, error) {
	args := make([]any, len(values))
	for i, v := range values {
		if !def.numeric {
			args[i] = v
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q wants a number, got %q", store.ErrInvalidFilter, name, v)
		}
		args[i] = n
	}
	return args, nil
}

func applyScalarFilter(b *queryBuilder, name string, def fieldDef, f store.Filter) error {
	col := "t." + def.column

	switch f.Modifier {
	case store.ModEquals:
		args, err := requireValues(name, def, f, 1)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			b.addWhere(col+" = ?", args...)
		} else {
			b.addWhere(fmt.Sprintf("%s IN (%s)", col, placeholders(len(args))), args...)
		}
	case store.ModNotEquals:
		args, err := requireValues(name, def, f, 1)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			b.addWhere(col+" IS NOT ?", args...)
		} else {
			b.addWhere(fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", col, col, placeholders(len(args))), args...)
		}
	case store.ModContains:
		if len(f.Values) != 1 {
			return fmt.Errorf("%w: contains on %q wants exactly one value", store.ErrInvalidFilter, name)
		}
		b.addWhere(col+` LIKE ? ESCAPE '\'`, "%"+escapeLike(f.Values[0])+"%")
	case store.ModIsNull:
		if def.numeric {
			b.addWhere(col + " IS NULL")
		} else {
			b.addWhere(fmt.Sprintf("(%s IS NULL OR %s = '')", col, col))
		}
	case store.ModNotNull:
		if def.numeric {
			b.addWhere(col + " IS NOT NULL")
		} else {
			b.addWhere(fmt.Sprintf("(%s IS NOT NULL AND %s != '')", col, col))
		}
	case store.ModRange:
		return applyRange(b, col, name, def, f)
	default:
		return fmt.Errorf("%w: modifier %q not valid for scalar field %q", store.ErrInvalidFilter, f.Modifier, name)
	}
	return nil
}

func applyRange(b *queryBuilder, col, name string, def fieldDef, f store.Filter) error {
	if f.Min == nil && f.Max == nil {
		return fmt.Errorf("%w: range on %q wants min and/or max", store.ErrInvalidFilter, name)
	}
	if f.Min != nil {
		args, err := filterValues(name, def, []string{*f.Min})
		if err != nil {
			return err
		}
		b.addWhere(col+" >= ?", args...)
	}
	if f.Max != nil {
		args, err := filterValues(name, def, []string{*f.Max})
		if err != nil {
			return err
		}
		b.addWhere(col+" <= ?", args...)
	}
	return nil
}

func requireValues(name string, def fieldDef, f store.Filter, min int) ([]any, error) {
	if len(f.Values) < min {
		return nil, fmt.Errorf("%w: %s on %q wants at least %d value(s)", store.ErrInvalidFilter, f.Modifier, name, min)
	}
	return filterValues(name, def, f.Values)
}

func (s *Store) applyRelationFilter(ctx context.Context, b *queryBuilder, name string, def fieldDef, f store.Filter) error {
	sub := func(in string) string {
		return fmt.Sprintf(`(SELECT 1 FROM %s j WHERE j.%s = t.id AND j.%s IN (%s))`,
			def.junction, def.ownerCol, def.otherCol, in)
	}

	values := f.Values
	switch f.Modifier {
	case store.ModIncludesDescendants:
		if !def.hierarchical {
			return fmt.Errorf("%w: %q is not hierarchical", store.ErrInvalidFilter, name)
		}
		if len(values) == 0 {
			return fmt.Errorf("%w: includes_descendants on %q wants at least one value", store.ErrInvalidFilter, name)
		}
		expanded, err := s.expandTagDescendants(ctx, values)
		if err != nil {
			return fmt.Errorf("expand tag descendants: %w", err)
		}
		values = expanded
		fallthrough
	case store.ModIncludesAny:
		if len(values) == 0 {
			return fmt.Errorf("%w: includes_any on %q wants at least one value", store.ErrInvalidFilter, name)
		}
		b.addWhere("EXISTS "+sub(placeholders(len(values))), idArgs(values)...)
	case store.ModIncludesAll:
		if len(values) == 0 {
			return fmt.Errorf("%w: includes_all on %q wants at least one value", store.ErrInvalidFilter, name)
		}
		pred := fmt.Sprintf(`(SELECT COUNT(DISTINCT j.%s) FROM %s j WHERE j.%s = t.id AND j.%s IN (%s)) = %d`,
			def.otherCol, def.junction, def.ownerCol, def.otherCol, placeholders(len(values)), len(values))
		b.addWhere(pred, idArgs(values)...)
	case store.ModExcludes:
		if len(values) == 0 {
			return fmt.Errorf("%w: excludes on %q wants at least one value", store.ErrInvalidFilter, name)
		}
		b.addWhere("NOT EXISTS "+sub(placeholders(len(values))), idArgs(values)...)
	case store.ModIsNull:
		b.addWhere(fmt.Sprintf(`NOT EXISTS (SELECT 1 FROM %s j WHERE j.%s = t.id)`, def.junction, def.ownerCol))
	case store.ModNotNull:
		b.addWhere(fmt.Sprintf(`EXISTS (SELECT 1 FROM %s j WHERE j.%s = t.id)`, def.junction, def.ownerCol))
	default:
		return fmt.Errorf("%w: modifier %q not valid for relation field %q", store.ErrInvalidFilter, f.Modifier, name)
	}
	return nil
}

func applyRatingFilter(b *queryBuilder, entityType domain.EntityType, name string, f store.Filter, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: filter %q needs a user", store.ErrInvalidFilter, name)
	}
	expr := fmt.Sprintf(`(SELECT r.rating FROM user_ratings r WHERE r.user_id = ? AND r.entity_type = '%s' AND r.entity_id = t.id)`, entityType)
	def := fieldDef{numeric: true}

	switch f.Modifier {
	case store.ModEquals:
		args, err := requireValues(name, def, f, 1)
		if err != nil {
			return err
		}
		b.addWhere(expr+" = ?", append([]any{userID}, args...)...)
	case store.ModNotEquals:
		args, err := requireValues(name, def, f, 1)
		if err != nil {
			return err
		}
		b.addWhere(expr+" IS NOT ?", append([]any{userID}, args...)...)
	case store.ModIsNull:
		b.addWhere(expr+" IS NULL", userID)
	case store.ModNotNull:
		b.addWhere(expr+" IS NOT NULL", userID)
	case store.ModRange:
		if f.Min == nil && f.Max == nil {
			return fmt.Errorf("%w: range on %q wants min and/or max", store.ErrInvalidFilter, name)
		}
		if f.Min != nil {
			args, err := filterValues(name, def, []string{*f.Min})
			if err != nil {
				return err
			}
			b.addWhere(expr+" >= ?", append([]any{userID}, args...)...)
		}
		if f.Max != nil {
			args, err := filterValues(name, def, []string{*f.Max})
			if err != nil {
				return err
			}
			b.addWhere(expr+" <= ?", append([]any{userID}, args...)...)
		}
	default:
		return fmt.Errorf("%w: modifier %q not valid for %q", store.ErrInvalidFilter, f.Modifier, name)
	}
	return nil
}

func applyFavoriteFilter(b *queryBuilder, entityType domain.EntityType, name string, f store.Filter, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: filter %q needs a user", store.ErrInvalidFilter, name)
	}
	if f.Modifier != store.ModEquals || len(f.Values) != 1 {
		return fmt.Errorf("%w: %q supports only equals true/false", store.ErrInvalidFilter, name)
	}
	want, err := strconv.ParseBool(f.Values[0])
	if err != nil {
		return fmt.Errorf("%w: %q wants true or false", store.ErrInvalidFilter, name)
	}
	pred := fmt.Sprintf(`EXISTS (SELECT 1 FROM user_favorites uf WHERE uf.user_id = ? AND uf.entity_type = '%s' AND uf.entity_id = t.id)`, entityType)
	if !want {
		pred = "NOT " + pred
	}
	b.addWhere(pred, userID)
	return nil
}

// expandTagDescendants returns the given tag IDs plus every transitive
// descendant, walking the child relation breadth-first with a visited set
// so a malformed cycle cannot loop.
func (s *Store) expandTagDescendants(ctx context.Context, roots []string) ([]string, error) {
	visited := make(map[string]struct{}, len(roots))
	var result []string
	var frontier []string
	for _, id := range roots {
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		result = append(result, id)
		frontier = append(frontier, id)
	}

	for len(frontier) > 0 {
		var next []string
		for _, chunk := range chunkIDs(frontier) {
			query := fmt.Sprintf(`SELECT child_id FROM tag_relations WHERE parent_id IN (%s)`,
				placeholders(len(chunk)))
			rows, err := s.db.QueryContext(ctx, query, idArgs(chunk)...)
			if err != nil {
				return nil, err
			}
			for rows.Next() {
				var child string
				if err := rows.Scan(&child); err != nil {
					rows.Close()
					return nil, err
				}
				if _, seen := visited[child]; seen {
					continue
				}
				visited[child] = struct{}{}
				result = append(result, child)
				next = append(next, child)
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return nil, err
			}
			rows.Close()
		}
		frontier = next
	}
	return result, nil
}

// escapeLike escapes LIKE wildcards in user-supplied substrings.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
