package cache

import (
	"fmt"
	"time"

	"trendboard/internal/models"
)

// TTL classes.
const (
	TTLDashboard  = time.Hour
	TTLCatalog    = 24 * time.Hour
	TTLSyncStatus = 10 * time.Minute
	TTLComparison = 24 * time.Hour
	TTLMonthly    = 6 * time.Hour
	TTLQuarterly  = 12 * time.Hour
	TTLAnnual     = 24 * time.Hour
)

// Fixed keys.
const (
	KeyDashboard  = "dashboard:overview"
	KeyIndicators = "indicators:list"
	KeySyncStatus = "meta:last-sync"
)

// TTLForFrequency returns the TTL class of an indicator's data by how often
// it changes upstream.
func TTLForFrequency(frequency string) time.Duration {
	switch frequency {
	case models.FrequencyMonthly:
		return TTLMonthly
	case models.FrequencyQuarterly:
		return TTLQuarterly
	default:
		return TTLAnnual
	}
}

// LatestKey is the key of an indicator's latest-value payload.
func LatestKey(indicatorID string) string {
	return "latest:" + indicatorID
}

// SeriesKey is the key of an indicator's series payload for a given limit.
func SeriesKey(indicatorID string, limit int) string {
	return fmt.Sprintf("series:%s:%d", indicatorID, limit)
}

// ComparisonKey is the key of a macro comparison payload.
func ComparisonKey(key string) string {
	return "comparison:" + key
}

// SyncInvalidations lists the keys a completed sync run makes stale.
func SyncInvalidations(changedIndicators []string) []string {
	keys := []string{KeyDashboard, KeyIndicators, KeySyncStatus}
	for _, id := range changedIndicators {
		keys = append(keys, LatestKey(id))
	}
	return keys
}
