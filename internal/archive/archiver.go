// Package archive periodically uploads aged column-file days to cold
// storage, compressed with zstd, then deletes the local copy, through a
// run-once-then-tick cycle loop over column-file day groups (every column
// file in one directory sharing a date suffix).
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"

	"github.com/ndrandal/tickvis/internal/columnfile"
)

// Archiver uploads day groups older than minAge to S3 and removes each
// file from local disk once confirmed written.
type Archiver struct {
	root     string
	s3       *s3.Client
	bucket   string
	prefix   string
	interval time.Duration
	minAge   time.Duration
}

// New creates an Archiver rooted at the same data directory the ingestion
// side writes into.
func New(root string, client *s3.Client, bucket, prefix string, interval, minAge time.Duration) *Archiver {
	return &Archiver{root: root, s3: client, bucket: bucket, prefix: prefix, interval: interval, minAge: minAge}
}

// Run starts the periodic archive loop. Blocks until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) {
	log.Printf("archive: bucket=%s prefix=%s interval=%v min_age=%v", a.bucket, a.prefix, a.interval, a.minAge)

	a.cycle(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.cycle(ctx)
		}
	}
}

func (a *Archiver) cycle(ctx context.Context) {
	groups, err := columnfile.WalkDayGroups(a.root)
	if err != nil {
		log.Printf("archive: scan failed: %v", err)
		return
	}

	cutoff := time.Now().UTC().Add(-a.minAge)
	for _, g := range groups {
		day, err := columnfile.ParseDateSuffix(g.Day)
		if err != nil || !day.Before(cutoff) {
			continue
		}
		if err := a.archiveGroup(ctx, g); err != nil {
			log.Printf("archive: %s (day %s): %v", g.Dir, g.Day, err)
			continue
		}
		log.Printf("archive: uploaded and removed %d files for %s (day %s)", len(g.Files), g.Dir, g.Day)
	}
}

// archiveGroup compresses every column file in the group with zstd and
// uploads each under <prefix>/<relative-dir>/<column>.<DD>.<MM>.<YY>.bin.zst,
// removing the local file only after a successful upload.
func (a *Archiver) archiveGroup(ctx context.Context, g columnfile.DayGroup) error {
	rel, err := filepath.Rel(a.root, g.Dir)
	if err != nil {
		rel = g.Dir
	}

	for _, path := range g.Files {
		compressed, err := compressFile(path)
		if err != nil {
			return fmt.Errorf("compress %s: %w", path, err)
		}

		key := fmt.Sprintf("%s/%s/%s.zst", a.prefix, rel, filepath.Base(path))
		if _, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &a.bucket,
			Key:    &key,
			Body:   bytes.NewReader(compressed),
		}); err != nil {
			return fmt.Errorf("put object %s: %w", key, err)
		}

		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove local %s after upload: %w", path, err)
		}
	}
	return nil
}

func compressFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("new zstd writer: %w", err)
	}
	defer enc.Close()

	return enc.EncodeAll(raw, nil), nil
}
