// Package main provides a read-only inspection tool for the local cache:
// row counts per entity type, junction sizes, sync bookkeeping, and the
// last sync run report.
//
// Usage:
//
//	DB_PATH=./mirror.db go run ./cmd/dbinspect
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "modernc.org/sqlite"
)

var entityTables = []string{
	"tags", "studios", "performers", "galleries", "groups", "scenes", "images",
}

var junctionTables = []string{
	"tag_relations", "gallery_performers", "gallery_tags", "group_tags",
	"scene_performers", "scene_tags", "scene_groups", "scene_galleries",
	"image_performers", "image_tags", "image_galleries",
}

var overlayTables = []string{
	"user_ratings", "user_favorites", "user_views", "user_o_history", "user_exclusions",
}

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./mirror.db"
	}

	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Cache Inspection ===")
	fmt.Println()

	fmt.Println("Entities (live / soft-deleted):")
	for _, table := range entityTables {
		var live, deleted int
		row := db.QueryRow(fmt.Sprintf(
			"SELECT COUNT(*) FILTER (WHERE deleted_at IS NULL), COUNT(*) FILTER (WHERE deleted_at IS NOT NULL) FROM %s", table))
		if err := row.Scan(&live, &deleted); err != nil {
			log.Fatalf("count %s: %v", table, err)
		}
		fmt.Printf("  %-12s %6d / %d\n", table, live, deleted)
	}

	fmt.Println()
	fmt.Println("Junctions:")
	for _, table := range junctionTables {
		fmt.Printf("  %-20s %6d\n", table, count(db, table))
	}

	fmt.Println()
	fmt.Println("Overlay:")
	for _, table := range overlayTables {
		fmt.Printf("  %-20s %6d\n", table, count(db, table))
	}

	fmt.Println()
	fmt.Println("Sync state:")
	rows, err := db.Query("SELECT entity_type, COALESCE(last_synced_at, '-'), COALESCE(last_full_synced_at, '-') FROM sync_state ORDER BY entity_type")
	if err != nil {
		log.Fatalf("sync state: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entityType, last, lastFull string
		if err := rows.Scan(&entityType, &last, &lastFull); err != nil {
			log.Fatalf("scan sync state: %v", err)
		}
		fmt.Printf("  %-12s last=%s full=%s\n", entityType, last, lastFull)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("sync state rows: %v", err)
	}

	var runID, kind, finished string
	err = db.QueryRow("SELECT id, kind, finished_at FROM sync_runs ORDER BY finished_at DESC LIMIT 1").
		Scan(&runID, &kind, &finished)
	switch err {
	case nil:
		fmt.Printf("\nLast sync run: %s (%s) finished %s\n", runID, kind, finished)
	case sql.ErrNoRows:
		fmt.Println("\nNo sync runs recorded")
	default:
		log.Fatalf("last sync run: %v", err)
	}
}

func count(db *sql.DB, table string) int {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		log.Fatalf("count %s: %v", table, err)
	}
	return n
}
