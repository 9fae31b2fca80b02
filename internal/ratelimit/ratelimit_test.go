package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupTestRedis creates an in-memory Redis server for testing
func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
		DB:   0,
	})

	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		t.Fatalf("Failed to connect to test Redis: %v", err)
	}

	cleanup := func() {
		redisClient.Close()
		mr.Close()
	}

	return redisClient, cleanup
}

func TestTokenBucket_Allow(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	bucket := NewTokenBucket(redisClient, 5, 5)

	ctx := context.Background()
	userID := "test_user"
	action := "reports"

	for i := 0; i < 5; i++ {
		allowed, err := bucket.Allow(ctx, userID, action)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
	}

	allowed, err := bucket.Allow(ctx, userID, action)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if allowed {
		t.Fatal("Expected request over capacity to be denied")
	}
}

func TestTokenBucket_IsolatesUsersAndActions(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	bucket := NewTokenBucket(redisClient, 1, 1)
	ctx := context.Background()

	if allowed, _ := bucket.Allow(ctx, "alice", "reports"); !allowed {
		t.Fatal("alice's first request should be allowed")
	}
	if allowed, _ := bucket.Allow(ctx, "alice", "reports"); allowed {
		t.Fatal("alice's second request should be denied")
	}

	// a different user and a different action each have their own bucket
	if allowed, _ := bucket.Allow(ctx, "bob", "reports"); !allowed {
		t.Fatal("bob should not share alice's bucket")
	}
	if allowed, _ := bucket.Allow(ctx, "alice", "login"); !allowed {
		t.Fatal("a different action should not share the bucket")
	}
}

func TestTokenBucket_GetRemaining(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	bucket := NewTokenBucket(redisClient, 5, 5)

	ctx := context.Background()
	userID := "test_user"
	action := "reports"

	remaining, err := bucket.GetRemaining(ctx, userID, action)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if remaining != 5 {
		t.Errorf("Expected 5 tokens for an untouched bucket, got %d", remaining)
	}

	for i := 0; i < 2; i++ {
		if _, err := bucket.Allow(ctx, userID, action); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	remaining, err = bucket.GetRemaining(ctx, userID, action)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if remaining != 3 {
		t.Errorf("Expected 3 tokens after 2 consumed, got %d", remaining)
	}
}

func TestTokenBucket_Reset(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	bucket := NewTokenBucket(redisClient, 1, 1)

	ctx := context.Background()
	userID := "test_user"
	action := "reports"

	if allowed, _ := bucket.Allow(ctx, userID, action); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := bucket.Allow(ctx, userID, action); allowed {
		t.Fatal("second request should be denied")
	}

	if err := bucket.Reset(ctx, userID, action); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if allowed, _ := bucket.Allow(ctx, userID, action); !allowed {
		t.Fatal("request after reset should be allowed")
	}
}
