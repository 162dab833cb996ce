package cache

import (
	"fmt"
	"time"

	"cgsync/internal/config"
)

// Namespace is the Redis key prefix for the application.
const Namespace = "cgsync"

// WatermarkKey addresses the newest ingested instant for one task combination.
func WatermarkKey(task, combo string) string {
	if combo == "" {
		return fmt.Sprintf("%s:watermark:%s", Namespace, task)
	}
	return fmt.Sprintf("%s:watermark:%s:%s", Namespace, task, combo)
}

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
