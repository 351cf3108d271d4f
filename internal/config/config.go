// Package config loads runtime configuration for the logger and server
// daemons from flags with environment-variable defaults.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds configuration shared by cmd/logger, cmd/server, and
// cmd/fixturegen.
type Config struct {
	// Data root
	DataRoot string

	// HTTP
	Host string
	Port int

	// Ingestion
	Exchange string
	Symbols  []string

	// MongoDB (symbol metadata store)
	MongoURI string

	// Range server mmap cache
	MmapCacheSize int

	// Disk-budget retention
	RetentionMaxBytes int64

	// S3 + zstd cold-storage archive (opt-in: active only when S3Bucket is set)
	S3Bucket        string
	S3Region        string
	S3Prefix        string
	ArchiveInterval time.Duration
	ArchiveMinAge   time.Duration

	// Live websocket fan-out
	LiveSendBufferSize int

	// cmd/fixturegen synthetic generation
	FixtureSeed int64
	FixtureDays int
}

// Load parses flags (with environment-variable defaults) into a Config.
func Load() *Config {
	c := &Config{}

	flag.StringVar(&c.DataRoot, "data-root", envStr("DATA_ROOT", "./data"), "Root directory for per-column tick files")

	flag.StringVar(&c.Host, "host", envStr("TICKVIS_HOST", "0.0.0.0"), "Listen host")
	flag.IntVar(&c.Port, "port", envInt("TICKVIS_PORT", 8100), "Listen port")

	flag.StringVar(&c.Exchange, "exchange", envStr("EXCHANGE", "coinbase"), "Exchange adapter to use")
	symbols := flag.String("symbols", envStr("SYMBOLS", "BTC-USD,ETH-USD,SOL-USD"), "Comma-separated list of symbols to ingest")

	flag.StringVar(&c.MongoURI, "mongo-uri", envStr("MONGO_URI", "mongodb://localhost:27017/tickvis"), "MongoDB connection URI for symbol metadata")

	flag.IntVar(&c.MmapCacheSize, "mmap-cache-size", envInt("MMAP_CACHE_SIZE", 100), "Requested range-server mmap LRU size (not read by the range server, whose LRU holds a fixed 100 handles)")

	retentionGB := flag.Int("retention-gb", envInt("RETENTION_GB", 0), "Disk budget for the data root, in GB (0 = disabled)")

	flag.StringVar(&c.S3Bucket, "s3-bucket", envStr("S3_BUCKET", ""), "S3 bucket for cold-storage archival (empty = disabled)")
	flag.StringVar(&c.S3Region, "s3-region", envStr("S3_REGION", "us-east-1"), "AWS region for S3")
	flag.StringVar(&c.S3Prefix, "s3-prefix", envStr("S3_PREFIX", "tickvis"), "S3 key prefix for archived column files")
	archiveIntervalHours := flag.Int("archive-interval-hours", envInt("ARCHIVE_INTERVAL_HOURS", 6), "Hours between archive sweeps")
	archiveMinAgeHours := flag.Int("archive-min-age-hours", envInt("ARCHIVE_MIN_AGE_HOURS", 48), "Only archive days older than this many hours")

	flag.IntVar(&c.LiveSendBufferSize, "live-send-buffer", envInt("LIVE_SEND_BUFFER", 256), "Per-client live websocket send buffer size")

	flag.Int64Var(&c.FixtureSeed, "fixture-seed", envInt64("FIXTURE_SEED", 0), "PRNG seed for synthetic fixture generation (0 = resume the saved PRNG state if present)")
	flag.IntVar(&c.FixtureDays, "fixture-days", envInt("FIXTURE_DAYS", 3), "Number of trailing days of synthetic data to generate")

	flag.Parse()

	c.Symbols = splitCSV(*symbols)
	c.RetentionMaxBytes = int64(*retentionGB) * 1 << 30
	c.ArchiveInterval = time.Duration(*archiveIntervalHours) * time.Hour
	c.ArchiveMinAge = time.Duration(*archiveMinAgeHours) * time.Hour

	return c
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
