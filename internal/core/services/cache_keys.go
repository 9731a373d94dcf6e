// internal/core/services/cache_keys.go
package services

import (
	"fmt"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

const (
	cacheKeyDashboard   = "dash:stats"
	cacheKeyDailyReport = "report:daily"
	cacheKeyBestSelling = "report:best_selling"
)

// ProductCacheKey is the display cache key for one product.
func ProductCacheKey(id int64) string {
	return fmt.Sprintf("prod:%d", id)
}

// InvalidationTargets lists the cached views made stale by event.
func InvalidationTargets(event domain.ChangeEvent) (keys []string, patterns []string) {
	keys = make([]string, 0, len(event.AffectedProducts))
	for _, p := range event.AffectedProducts {
		keys = append(keys, ProductCacheKey(p.ProductID))
	}
	return keys, []string{"dash:*", "report:*"}
}
