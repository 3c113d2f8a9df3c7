package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/minibank/internal/services"
)

const (
	// IdempotencyHeader carries the client-chosen key for a mutating request.
	IdempotencyHeader = "Idempotency-Key"

	// LockTimeout releases a key whose request crashed mid-flight.
	LockTimeout = 10 * time.Second

	RedisKeyPrefix = "idempotency:"
	LockKeyPrefix  = "lock:"
)

type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// responseRecorder tees the response to the client and keeps a copy for the cache.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key so a
// retried deposit, withdrawal or transfer is applied at most once. Keys are
// scoped per authenticated user, method and path. Requests without the header, or a nil
// client, pass straight through.
func Idempotency(rdb *redis.Client, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" || rdb == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			scope := "anonymous"
			if userID, ok := UserIDFromContext(ctx); ok {
				scope = fmt.Sprintf("%d", userID)
			}
			// The same key on another route or account is a different request.
			scope += ":" + r.Method + ":" + r.URL.Path
			cacheKey := RedisKeyPrefix + scope + ":" + key
			lockKey := LockKeyPrefix + scope + ":" + key

			cached, err := rdb.Get(ctx, cacheKey).Result()
			if err == nil {
				var resp cachedResponse
				if err := json.Unmarshal([]byte(cached), &resp); err == nil {
					log.Printf("[Idempotency] Cache hit for key: %s", key)
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("X-Idempotency-Hit", "true")
					w.WriteHeader(resp.Status)
					w.Write(resp.Body)
					return
				}
				log.Printf("[Idempotency] Discarding unreadable cache entry for key: %s", key)
			} else if err != redis.Nil {
				log.Printf("[Idempotency] Cache lookup error: %v", err)
				services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "processing", LockTimeout).Result()
			if err != nil {
				log.Printf("[Idempotency] Lock acquisition error: %v", err)
				services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
				return
			}
			if !acquired {
				log.Printf("[Idempotency] Concurrent request detected: %s", key)
				services.SendErrorResponse(w, "A request with this idempotency key is currently being processed", http.StatusConflict, nil)
				return
			}
			// The client may hang up mid-request; bookkeeping must still land.
			bg := context.Background()
			defer func() {
				if err := rdb.Del(bg, lockKey).Err(); err != nil {
					log.Printf("[Idempotency] Failed to release lock: %v", err)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Only successful outcomes are replayed; a failed attempt may be retried.
			if rec.statusCode < 200 || rec.statusCode >= 300 {
				return
			}
			body := bytes.TrimSpace(rec.body.Bytes())
			if len(body) == 0 {
				body = []byte("null")
			}
			payload, err := json.Marshal(cachedResponse{Status: rec.statusCode, Body: body})
			if err != nil {
				log.Printf("[Idempotency] Failed to encode response: %v", err)
				return
			}
			if err := rdb.Set(bg, cacheKey, string(payload), ttl).Err(); err != nil {
				log.Printf("[Idempotency] Failed to cache response: %v", err)
			}
		})
	}
}
