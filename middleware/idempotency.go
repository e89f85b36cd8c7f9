package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	IdempotencyHeader    = "Idempotency-Key"
	IdempotencyHitHeader = "X-Idempotency-Hit"

	// IdempotencyCacheTTL is how long a 2xx reply is replayed for a key.
	IdempotencyCacheTTL = 24 * time.Hour

	// LockTimeout expires the in-flight marker of a crashed process. A live
	// request keeps renewing it, so a bulk run may take longer than this.
	LockTimeout = 2 * time.Minute

	RedisKeyPrefix = "payroll:idempotency:"
	LockKeyPrefix  = "payroll:lock:"
)

// lockRefreshInterval is how often a live request renews its lock.
var lockRefreshInterval = LockTimeout / 3

// recordingWriter tees the reply so a successful one can be stored.
type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key so
// that a retried salary payment or treasury transfer does not reach the
// contract twice. Keys are scoped to the request path. A second request
// arriving while the first is still running gets 409.
func Idempotency(rdb redis.Cmdable, log logrus.FieldLogger) func(http.Handler) http.Handler {
	log = log.WithField("component", "idempotency")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			scoped := r.URL.Path + ":" + key
			cacheKey := RedisKeyPrefix + scoped
			lockKey := LockKeyPrefix + scoped
			entry := log.WithFields(logrus.Fields{"key": key, "path": r.URL.Path})

			stored, err := rdb.Get(ctx, cacheKey).Result()
			if err == nil {
				entry.Info("replaying stored response")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(IdempotencyHitHeader, "true")
				w.Write([]byte(stored))
				return
			}
			if err != redis.Nil {
				entry.WithError(err).Warn("cache lookup failed")
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "processing", LockTimeout).Result()
			if err != nil {
				entry.WithError(err).Error("lock acquisition failed")
				writeError(w, http.StatusInternalServerError, "Server error", "Idempotency store unavailable")
				return
			}

			if !acquired {
				entry.Warn("key already in flight")
				writeError(w, http.StatusConflict, "Conflict", "A request with this idempotency key is currently being processed")
				return
			}

			// The request context may already be cancelled by the time the
			// lock is released.
			defer func() {
				if err := rdb.Del(context.WithoutCancel(ctx), lockKey).Err(); err != nil {
					entry.WithError(err).Warn("failed to release lock")
				}
			}()
			stopRenewing := renewLock(context.WithoutCancel(ctx), rdb, lockKey, entry)
			defer stopRenewing()

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Only 2xx replies are replayed.
			if rec.status >= 200 && rec.status < 300 {
				if err := rdb.Set(context.WithoutCancel(ctx), cacheKey, rec.body.String(), IdempotencyCacheTTL).Err(); err != nil {
					entry.WithError(err).Warn("failed to cache response")
				} else {
					entry.WithField("ttl", IdempotencyCacheTTL).Info("cached response")
				}
			}
		})
	}
}

// renewLock extends the lock's expiry until the returned func is called.
func renewLock(ctx context.Context, rdb redis.Cmdable, lockKey string, log logrus.FieldLogger) func() {
	done := make(chan struct{})
	ticker := time.NewTicker(lockRefreshInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := rdb.Expire(ctx, lockKey, LockTimeout).Err(); err != nil {
					log.WithError(err).Warn("failed to renew lock")
				}
			}
		}
	}()
	return func() { close(done) }
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   kind,
		"message": message,
	})
}
