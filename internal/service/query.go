package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
	domainerrors "github.com/mirrorapp/mirror-server/internal/errors"
	"github.com/mirrorapp/mirror-server/internal/store"
	"github.com/mirrorapp/mirror-server/internal/store/sqlite"
	"github.com/mirrorapp/mirror-server/internal/validation"
)

// QueryService fronts the query engine: it validates specs, enforces a
// per-query timeout, and translates store sentinels into domain errors.
type QueryService struct {
	store    *sqlite.Store
	validate *validation.Validator
	logger   *slog.Logger
	timeout  time.Duration
}

// NewQueryService creates a new query service. timeout bounds each query;
// zero disables the bound.
func NewQueryService(st *sqlite.Store, validate *validation.Validator, logger *slog.Logger, timeout time.Duration) *QueryService {
	return &QueryService{
		store:    st,
		validate: validate,
		logger:   logger,
		timeout:  timeout,
	}
}

// QueryResult is the type-erased page returned by Execute. Exactly one of
// the entity slices is populated, matching the requested entity type, or
// IDs alone in IDs-only mode.
type QueryResult struct {
	EntityType domain.EntityType `json:"entity_type"`

	Scenes     []*domain.Scene     `json:"scenes,omitempty"`
	Images     []*domain.Image     `json:"images,omitempty"`
	Galleries  []*domain.Gallery   `json:"galleries,omitempty"`
	Groups     []*domain.Group     `json:"groups,omitempty"`
	Performers []*domain.Performer `json:"performers,omitempty"`
	Studios    []*domain.Studio    `json:"studios,omitempty"`
	Tags       []*domain.Tag       `json:"tags,omitempty"`

	IDs []string `json:"ids,omitempty"`

	Total   int    `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	Seed    *int64 `json:"seed,omitempty"`
}

// Execute runs a query against the named entity type.
func (s *QueryService) Execute(ctx context.Context, entityType string, spec *store.QuerySpec) (*QueryResult, error) {
	t, err := domain.ParseEntityType(entityType)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	if err := s.prepare(spec); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	result := &QueryResult{EntityType: t}
	switch t {
	case domain.EntityScene:
		page, err := s.store.QueryScenes(ctx, spec)
		if err != nil {
			return nil, s.mapErr(err)
		}
		result.Scenes = page.Items
		fillMeta(result, page.IDs, page.Total, page.Page, page.PerPage, page.Seed)
	case domain.EntityImage:
		page, err := s.store.QueryImages(ctx, spec)
		if err != nil {
			return nil, s.mapErr(err)
		}
		result.Images = page.Items
		fillMeta(result, page.IDs, page.Total, page.Page, page.PerPage, page.Seed)
	case domain.EntityGallery:
		page, err := s.store.QueryGalleries(ctx, spec)
		if err != nil {
			return nil, s.mapErr(err)
		}
		result.Galleries = page.Items
		fillMeta(result, page.IDs, page.Total, page.Page, page.PerPage, page.Seed)
	case domain.EntityGroup:
		page, err := s.store.QueryGroups(ctx, spec)
		if err != nil {
			return nil, s.mapErr(err)
		}
		result.Groups = page.Items
		fillMeta(result, page.IDs, page.Total, page.Page, page.PerPage, page.Seed)
	case domain.EntityPerformer:
		page, err := s.store.QueryPerformers(ctx, spec)
		if err != nil {
			return nil, s.mapErr(err)
		}
		result.Performers = page.Items
		fillMeta(result, page.IDs, page.Total, page.Page, page.PerPage, page.Seed)
	case domain.EntityStudio:
		page, err := s.store.QueryStudios(ctx, spec)
		if err != nil {
			return nil, s.mapErr(err)
		}
		result.Studios = page.Items
		fillMeta(result, page.IDs, page.Total, page.Page, page.PerPage, page.Seed)
	case domain.EntityTag:
		page, err := s.store.QueryTags(ctx, spec)
		if err != nil {
			return nil, s.mapErr(err)
		}
		result.Tags = page.Items
		fillMeta(result, page.IDs, page.Total, page.Page, page.PerPage, page.Seed)
	}

	return result, nil
}

// GetByID fetches one entity through the full query pipeline so every
// visibility rule applies. An excluded entity is indistinguishable from a
// missing one.
func (s *QueryService) GetByID(ctx context.Context, entityType, entityID, userID string, role domain.Role) (*QueryResult, error) {
	spec := &store.QuerySpec{
		Filters: map[string]store.Filter{
			"id": {Modifier: store.ModEquals, Values: []string{entityID}},
		},
		Page:    1,
		PerPage: 1,
		UserID:  userID,
		Role:    role,
	}
	result, err := s.Execute(ctx, entityType, spec)
	if err != nil {
		return nil, err
	}
	if result.Total == 0 {
		return nil, domainerrors.NotFoundf("%s %s not found", entityType, entityID)
	}
	return result, nil
}

func (s *QueryService) prepare(spec *store.QuerySpec) error {
	spec.Normalize()
	return s.validate.Validate(spec)
}

func (s *QueryService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *QueryService) mapErr(err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidFilter):
		return domainerrors.Validation(err.Error())
	case errors.Is(err, store.ErrCacheNotReady):
		return domainerrors.CacheNotReady("initial sync has not completed")
	}
	s.logger.Error("query failed", "error", err)
	return err
}

func fillMeta(r *QueryResult, ids []string, total, page, perPage int, seed *int64) {
	r.IDs = ids
	r.Total = total
	r.Page = page
	r.PerPage = perPage
	r.Seed = seed
}
