package config

import (
	"os"
	"strings"
)

const (
	SequenceAllocatorDB    = "db"
	SequenceAllocatorRedis = "redis"
)

// SequenceAllocatorKind selects how transaction ids are serialized.
//
// Set via env:
// - SEQUENCE_ALLOCATOR=db (default): counter row locked inside the document transaction
// - SEQUENCE_ALLOCATOR=redis: redislock + INCR, seeded from the database
func SequenceAllocatorKind() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SEQUENCE_ALLOCATOR")))
	if v == SequenceAllocatorRedis {
		return SequenceAllocatorRedis
	}
	return SequenceAllocatorDB
}

// SkipMigrations disables AutoMigrate at startup.
//
// Set via env:
// - SKIP_MIGRATIONS=true
func SkipMigrations() bool {
	return boolFromEnv("SKIP_MIGRATIONS")
}

// ReferenceCacheEnabled turns on redis caching for tax rates and document types.
// Default on; the cache is a no-op without a redis connection anyway.
func ReferenceCacheEnabled() bool {
	v := strings.TrimSpace(os.Getenv("REFERENCE_CACHE"))
	if v == "" {
		return true
	}
	return boolFromEnv("REFERENCE_CACHE")
}

// RateLimitEnabled turns on the per-IP request limiter (needs redis).
func RateLimitEnabled() bool {
	return boolFromEnv("RATE_LIMIT_ENABLED")
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
