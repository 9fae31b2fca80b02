package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/cleanmap/reports-service/internal/ratelimit"
	"github.com/cleanmap/reports-service/internal/utils/response"
)

// actionLimits maps a rate-limited action to its per-minute budget.
var actionLimits = map[string]int64{
	"reports": 10, // POST /reports: 10/min per user
}

type RateLimitConfig struct {
	limiters map[string]*ratelimit.TokenBucket
}

func NewRateLimitConfig(redisClient *redis.Client) *RateLimitConfig {
	config := &RateLimitConfig{
		limiters: make(map[string]*ratelimit.TokenBucket),
	}

	for action, limit := range actionLimits {
		config.limiters[action] = ratelimit.NewTokenBucket(redisClient, limit, limit)
	}

	return config
}

// RateLimitMiddleware enforces the per-user budget for an action.
// Assumes the auth middleware ran first.
func (rlc *RateLimitConfig) RateLimitMiddleware(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserIDFromContext(r.Context())
			if !ok {
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
					errors.New("user not authenticated")))
				return
			}

			limiter, exists := rlc.limiters[action]
			if !exists {
				// no limiter configured for this action
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), userID, action)
			if err != nil {
				response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(
					fmt.Errorf("rate limit check failed: %w", err)))
				return
			}

			remaining, _ := limiter.GetRemaining(r.Context(), userID, action)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(actionLimits[action], 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", "60")

			if !allowed {
				response.WriteJSON(w, http.StatusTooManyRequests, response.GeneralError(
					errors.New("rate limit exceeded")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
