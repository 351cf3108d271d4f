// Package retention enforces a disk-space budget over the column-file data
// root by deleting the oldest day groups (every column file in one
// directory sharing a date suffix) first, through a ticker-driven prune
// loop over on-disk column files rather than Mongo trade documents.
package retention

import (
	"context"
	"log"
	"os"
	"sort"
	"time"

	"github.com/ndrandal/tickvis/internal/columnfile"
)

const checkInterval = 1 * time.Hour

// Run enforces maxBytes total usage under root, blocking until ctx is
// cancelled. Pass maxBytes <= 0 to disable.
func Run(ctx context.Context, root string, maxBytes int64) {
	if maxBytes <= 0 {
		log.Println("retention: disabled (no disk budget configured)")
		return
	}

	log.Printf("retention: enforcing a %d byte budget under %s every %v", maxBytes, root, checkInterval)
	enforce(root, maxBytes)

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enforce(root, maxBytes)
		}
	}
}

func enforce(root string, maxBytes int64) {
	groups, err := columnfile.WalkDayGroups(root)
	if err != nil {
		log.Printf("retention: scan failed: %v", err)
		return
	}

	var total int64
	for _, g := range groups {
		total += g.TotalSize
	}
	if total <= maxBytes {
		return
	}

	// Oldest day first: DD.MM.YY suffixes don't sort correctly as plain
	// strings, so parse each back to a comparable time.Time.
	sort.Slice(groups, func(i, j int) bool {
		ti, _ := columnfile.ParseDateSuffix(groups[i].Day)
		tj, _ := columnfile.ParseDateSuffix(groups[j].Day)
		return ti.Before(tj)
	})

	var pruned int
	for _, g := range groups {
		if total <= maxBytes {
			break
		}
		if err := removeGroup(g); err != nil {
			log.Printf("retention: failed to prune %s (day %s): %v", g.Dir, g.Day, err)
			continue
		}
		total -= g.TotalSize
		pruned++
	}
	if pruned > 0 {
		log.Printf("retention: pruned %d day(s), %d bytes now used under budget of %d", pruned, total, maxBytes)
	}
}

func removeGroup(g columnfile.DayGroup) error {
	for _, f := range g.Files {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}
