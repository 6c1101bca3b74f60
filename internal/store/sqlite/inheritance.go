package sqlite

import (
	"context"
	"fmt"
)

// galleryForImage selects the gallery an image inherits from: the lowest
// gallery ID among the image's live galleries. Deterministic regardless of
// junction insertion order.
const galleryForImage = `(
	SELECT MIN(ig.gallery_id)
	FROM image_galleries ig
	JOIN galleries g ON g.id = ig.gallery_id AND g.deleted_at IS NULL
	WHERE ig.image_id = images.id
)`

// imageInheritedScalars lists scalar columns an image borrows from its
// gallery when its own value is NULL.
var imageInheritedScalars = []string{"studio_id", "date", "photographer", "details"}

// ApplyContainerInheritance propagates gallery metadata onto contained
// images that have none of their own. Scalar fields are copied only when
// the image's field is NULL; relation rows (tags, performers) are copied
// only when the image has zero rows of that relation, so an image with even
// one tag of its own never gains inherited tags. Idempotent: a second run
// with no new data changes nothing.
func (s *Store) ApplyContainerInheritance(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin inheritance transaction: %w", err)
	}
	defer tx.Rollback()

	for _, col := range imageInheritedScalars {
		query := fmt.Sprintf(`
			UPDATE images SET %[1]s = (
				SELECT g.%[1]s FROM galleries g WHERE g.id = %[2]s
			)
			WHERE images.deleted_at IS NULL
			  AND images.%[1]s IS NULL
			  AND %[2]s IS NOT NULL`, col, galleryForImage)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("inherit images.%s: %w", col, err)
		}
	}

	// Tags: all-or-nothing per image.
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO image_tags (image_id, tag_id)
		SELECT images.id, gt.tag_id
		FROM images
		JOIN gallery_tags gt ON gt.gallery_id = `+galleryForImage+`
		WHERE images.deleted_at IS NULL
		  AND NOT EXISTS (SELECT 1 FROM image_tags it WHERE it.image_id = images.id)`); err != nil {
		return fmt.Errorf("inherit image tags: %w", err)
	}

	// Performers: same rule.
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO image_performers (image_id, performer_id)
		SELECT images.id, gp.performer_id
		FROM images
		JOIN gallery_performers gp ON gp.gallery_id = `+galleryForImage+`
		WHERE images.deleted_at IS NULL
		  AND NOT EXISTS (SELECT 1 FROM image_performers ip WHERE ip.image_id = images.id)`); err != nil {
		return fmt.Errorf("inherit image performers: %w", err)
	}

	return tx.Commit()
}
