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
)

// OverlayService manages the per-user overlay: ratings, favorites, view
// and O history, and exclusions. Overlay writes target live or
// soft-deleted entities alike; only unknown IDs are rejected.
type OverlayService struct {
	store  *sqlite.Store
	logger *slog.Logger
}

// NewOverlayService creates a new overlay service.
func NewOverlayService(st *sqlite.Store, logger *slog.Logger) *OverlayService {
	return &OverlayService{store: st, logger: logger}
}

// SetRating stores userID's rating for an entity, replacing any previous
// value. Ratings are 0 to 100.
func (s *OverlayService) SetRating(ctx context.Context, userID string, entityType domain.EntityType, entityID string, rating int) error {
	if userID == "" {
		return domainerrors.Validation("user id is required")
	}
	if rating < 0 || rating > 100 {
		return domainerrors.Validation("rating must be between 0 and 100")
	}
	return s.mapErr(s.store.SetRating(ctx, userID, entityType, entityID, rating), entityType, entityID)
}

// DeleteRating removes userID's rating for an entity.
func (s *OverlayService) DeleteRating(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	return s.mapErr(s.store.DeleteRating(ctx, userID, entityType, entityID), entityType, entityID)
}

// SetFavorite marks an entity as a favorite. Idempotent.
func (s *OverlayService) SetFavorite(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	if userID == "" {
		return domainerrors.Validation("user id is required")
	}
	return s.mapErr(s.store.SetFavorite(ctx, userID, entityType, entityID), entityType, entityID)
}

// Unfavorite removes a favorite mark.
func (s *OverlayService) Unfavorite(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	return s.mapErr(s.store.Unfavorite(ctx, userID, entityType, entityID), entityType, entityID)
}

// AddView appends a view event and returns the user's new view count for
// the entity.
func (s *OverlayService) AddView(ctx context.Context, userID string, entityType domain.EntityType, entityID string) (int, error) {
	if userID == "" {
		return 0, domainerrors.Validation("user id is required")
	}
	n, err := s.store.AddView(ctx, userID, entityType, entityID, time.Now())
	return n, s.mapErr(err, entityType, entityID)
}

// AddO appends an O event and returns the user's new O count for the
// entity.
func (s *OverlayService) AddO(ctx context.Context, userID string, entityType domain.EntityType, entityID string) (int, error) {
	if userID == "" {
		return 0, domainerrors.Validation("user id is required")
	}
	n, err := s.store.AddO(ctx, userID, entityType, entityID, time.Now())
	return n, s.mapErr(err, entityType, entityID)
}

// Exclude hides an entity from userID's queries. Idempotent.
func (s *OverlayService) Exclude(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	if userID == "" {
		return domainerrors.Validation("user id is required")
	}
	return s.mapErr(s.store.Exclude(ctx, userID, entityType, entityID), entityType, entityID)
}

// Unexclude lifts an exclusion.
func (s *OverlayService) Unexclude(ctx context.Context, userID string, entityType domain.EntityType, entityID string) error {
	return s.mapErr(s.store.Unexclude(ctx, userID, entityType, entityID), entityType, entityID)
}

// Exclusions lists userID's exclusions for one entity type.
func (s *OverlayService) Exclusions(ctx context.Context, userID string, entityType domain.EntityType) ([]domain.Exclusion, error) {
	return s.store.Exclusions(ctx, userID, entityType)
}

func (s *OverlayService) mapErr(err error, entityType domain.EntityType, entityID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFoundf("%s %s not found", entityType, entityID)
	}
	s.logger.Error("overlay operation failed",
		"entity_type", entityType, "entity_id", entityID, "error", err)
	return err
}
