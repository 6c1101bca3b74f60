// Package main provides a tool to seed the local cache with synthetic
// catalog data for development.
//
// It builds a randomized in-memory catalog and runs it through the real
// sync pipeline, so inheritance, counters, and junctions all end up in the
// same state a real upstream would produce.
//
// Usage:
//
//	DB_PATH=./mirror.db go run ./cmd/seed
//	DB_PATH=./mirror.db go run ./cmd/seed --scenes 500 --ratings
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/service"
	"github.com/mirrorapp/mirror-server/internal/store/sqlite"
	"github.com/mirrorapp/mirror-server/internal/upstream"
)

var (
	sceneCount  = flag.Int("scenes", 200, "Number of scenes to generate")
	seedRatings = flag.Bool("ratings", false, "Also create overlay data for a test user")
)

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./mirror.db"
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := sqlite.Open(dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	client := buildCatalog(rng, *sceneCount)
	syncService := service.NewSyncService(st, client, logger)

	fmt.Println("Running full sync over the generated catalog...")
	report, err := syncService.RunFullSync(ctx)
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}
	created, updated, deleted := report.Totals()
	fmt.Printf("Sync done: %d created, %d updated, %d soft-deleted\n", created, updated, deleted)

	if *seedRatings {
		seedOverlay(ctx, st, rng, *sceneCount)
	}
}

var tagNames = []string{"Action", "Drama", "Comedy", "Noir", "Outdoor", "Vintage", "Interview", "Documentary"}

// buildCatalog fills a fake upstream with a randomized but consistent
// catalog: every relation points at an entity that exists.
func buildCatalog(rng *rand.Rand, scenes int) *upstream.FakeClient {
	client := upstream.NewFakeClient()
	now := time.Now().UTC()

	tags := make([]upstream.RawEntity, len(tagNames))
	for i, name := range tagNames {
		tags[i] = upstream.RawEntity{ID: fmt.Sprintf("tag-%d", i+1), Name: name, UpdatedAt: now}
	}
	// Give the first two tags a parent, so hierarchical filters have data.
	tags[1].ParentIDs = []string{tags[0].ID}
	tags[2].ParentIDs = []string{tags[0].ID}
	client.Set(domain.EntityTag, tags...)

	var studios []upstream.RawEntity
	for i := range 5 {
		studios = append(studios, upstream.RawEntity{
			ID: fmt.Sprintf("studio-%d", i+1), Name: fmt.Sprintf("Studio %d", i+1), UpdatedAt: now,
		})
	}
	client.Set(domain.EntityStudio, studios...)

	var performers []upstream.RawEntity
	for i := range 20 {
		performers = append(performers, upstream.RawEntity{
			ID: fmt.Sprintf("perf-%d", i+1), Name: fmt.Sprintf("Performer %d", i+1), UpdatedAt: now,
		})
	}
	client.Set(domain.EntityPerformer, performers...)

	var galleries []upstream.RawEntity
	for i := range scenes / 4 {
		studio := studios[rng.Intn(len(studios))].ID
		galleries = append(galleries, upstream.RawEntity{
			ID:           fmt.Sprintf("gal-%d", i+1),
			Title:        fmt.Sprintf("Gallery %d", i+1),
			Date:         randomDate(rng),
			StudioID:     &studio,
			PerformerIDs: pick(rng, performers, 2),
			TagIDs:       pick(rng, tags, 2),
			UpdatedAt:    now,
		})
	}
	client.Set(domain.EntityGallery, galleries...)

	var groups []upstream.RawEntity
	for i := range 10 {
		groups = append(groups, upstream.RawEntity{
			ID: fmt.Sprintf("grp-%d", i+1), Name: fmt.Sprintf("Group %d", i+1),
			TagIDs: pick(rng, tags, 1), UpdatedAt: now,
		})
	}
	client.Set(domain.EntityGroup, groups...)

	var sceneEntities []upstream.RawEntity
	for i := range scenes {
		studio := studios[rng.Intn(len(studios))].ID
		e := upstream.RawEntity{
			ID:           fmt.Sprintf("scene-%d", i+1),
			Title:        fmt.Sprintf("Scene %d", i+1),
			Date:         randomDate(rng),
			DurationSec:  int64(300 + rng.Intn(3600)),
			StudioID:     &studio,
			PerformerIDs: pick(rng, performers, 1+rng.Intn(3)),
			TagIDs:       pick(rng, tags, 1+rng.Intn(3)),
			UpdatedAt:    now,
		}
		if len(galleries) > 0 && rng.Intn(3) == 0 {
			e.GalleryIDs = []string{galleries[rng.Intn(len(galleries))].ID}
		}
		if rng.Intn(4) == 0 {
			e.GroupIDs = []string{groups[rng.Intn(len(groups))].ID}
		}
		sceneEntities = append(sceneEntities, e)
	}
	client.Set(domain.EntityScene, sceneEntities...)

	var images []upstream.RawEntity
	for i := range scenes / 2 {
		e := upstream.RawEntity{
			ID:        fmt.Sprintf("img-%d", i+1),
			Title:     fmt.Sprintf("Image %d", i+1),
			UpdatedAt: now,
		}
		if len(galleries) > 0 {
			// Most images are bare and inherit from their gallery.
			e.GalleryIDs = []string{galleries[rng.Intn(len(galleries))].ID}
		}
		images = append(images, e)
	}
	client.Set(domain.EntityImage, images...)

	return client
}

// seedOverlay creates ratings, favorites, and view history for a test user.
func seedOverlay(ctx context.Context, st *sqlite.Store, rng *rand.Rand, scenes int) {
	const userID = "seed-user"
	fmt.Printf("Seeding overlay data for user %q...\n", userID)

	for i := 1; i <= scenes; i++ {
		if rng.Intn(3) != 0 {
			continue
		}
		sceneID := fmt.Sprintf("scene-%d", i)
		if err := st.SetRating(ctx, userID, domain.EntityScene, sceneID, 20+rng.Intn(81)); err != nil {
			log.Fatalf("SetRating: %v", err)
		}
		if rng.Intn(2) == 0 {
			if err := st.SetFavorite(ctx, userID, domain.EntityScene, sceneID); err != nil {
				log.Fatalf("SetFavorite: %v", err)
			}
		}
		for range rng.Intn(4) {
			if _, err := st.AddView(ctx, userID, domain.EntityScene, sceneID, time.Now()); err != nil {
				log.Fatalf("AddView: %v", err)
			}
		}
	}
	fmt.Println("Overlay data seeded")
}

func randomDate(rng *rand.Rand) string {
	base := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, rng.Intn(3650)).Format("2006-01-02")
}

// pick selects n distinct IDs from the pool.
func pick(rng *rand.Rand, pool []upstream.RawEntity, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	idx := rng.Perm(len(pool))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = pool[j].ID
	}
	return out
}
