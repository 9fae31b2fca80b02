package cache

import (
	"context"
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/cleanmap/reports-service/internal/utils/response"
)

// CacheStats represents cache performance statistics
type CacheStats struct {
	RedisConnected bool     `json:"redis_connected"`
	CacheKeys      []string `json:"cache_keys_sample"`
	KeyCount       int      `json:"total_keys"`
}

// GetCacheStats reports the health of the GeoJSON response cache.
func GetCacheStats(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()
		stats := CacheStats{RedisConnected: true}

		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			stats.RedisConnected = false
			response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
			return
		}

		keys := redisClient.Keys(ctx, "geojson:*")
		if keys.Err() == nil {
			stats.KeyCount = len(keys.Val())
			stats.CacheKeys = keys.Val()
			if len(stats.CacheKeys) > 10 {
				stats.CacheKeys = stats.CacheKeys[:10]
			}
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
	}
}
