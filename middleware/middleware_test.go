package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashasviy/payroll-bridge/logging"
)

// memRedis implements the handful of commands Idempotency uses.
type memRedis struct {
	redis.Cmdable

	mu      sync.Mutex
	data    map[string]string
	setErr  error
	expires int
}

func newMemRedis() *memRedis {
	return &memRedis{data: make(map[string]string)}
}

func (m *memRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewStringCmd(ctx, "get", key)
	if v, ok := m.data[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (m *memRedis) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx, "setnx", key)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	if _, ok := m.data[key]; ok {
		cmd.SetVal(false)
		return cmd
	}
	m.data[key] = value.(string)
	cmd.SetVal(true)
	return cmd
}

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	cmd := redis.NewStatusCmd(ctx, "set", key)
	cmd.SetVal("OK")
	return cmd
}

func (m *memRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	cmd := redis.NewIntCmd(ctx, "del")
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func (m *memRedis) Expire(ctx context.Context, key string, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx, "expire", key)
	_, ok := m.data[key]
	if ok {
		m.expires++
	}
	cmd.SetVal(ok)
	return cmd
}

func (m *memRedis) renewals() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expires
}

func countingHandler(calls *atomic.Int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"success":true}`))
	})
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	var calls atomic.Int32
	h := Idempotency(newMemRedis(), logging.Discard())(countingHandler(&calls, http.StatusOK))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pay-all-salaries", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.EqualValues(t, 2, calls.Load())
}

func TestIdempotencyReplaysSuccessfulResponse(t *testing.T) {
	var calls atomic.Int32
	rdb := newMemRedis()
	h := Idempotency(rdb, logging.Discard())(countingHandler(&calls, http.StatusOK))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/pay-all-salaries", nil)
		req.Header.Set(IdempotencyHeader, "run-2026-10")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()

	assert.EqualValues(t, 1, calls.Load(), "payroll must run once per key")
	assert.Empty(t, first.Header().Get(IdempotencyHitHeader))
	assert.Equal(t, "true", second.Header().Get(IdempotencyHitHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.NotContains(t, rdb.data, LockKeyPrefix+"/api/pay-all-salaries:run-2026-10", "lock released")
}

func TestIdempotencyDoesNotCacheFailures(t *testing.T) {
	var calls atomic.Int32
	h := Idempotency(newMemRedis(), logging.Discard())(countingHandler(&calls, http.StatusInternalServerError))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/claim-salary", nil)
		req.Header.Set(IdempotencyHeader, "k")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.EqualValues(t, 2, calls.Load())
}

func TestIdempotencyKeysAreScopedToPath(t *testing.T) {
	var calls atomic.Int32
	h := Idempotency(newMemRedis(), logging.Discard())(countingHandler(&calls, http.StatusOK))

	for _, path := range []string{"/api/fund-treasury", "/api/claim-salary"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(IdempotencyHeader, "same")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.EqualValues(t, 2, calls.Load())
}

func TestIdempotencyConflictWhileLocked(t *testing.T) {
	var calls atomic.Int32
	rdb := newMemRedis()
	rdb.data[LockKeyPrefix+"/api/pay-all-salaries:busy"] = "processing"
	h := Idempotency(rdb, logging.Discard())(countingHandler(&calls, http.StatusOK))

	req := httptest.NewRequest(http.MethodPost, "/api/pay-all-salaries", nil)
	req.Header.Set(IdempotencyHeader, "busy")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, calls.Load())
}

func TestIdempotencyStoreUnavailable(t *testing.T) {
	var calls atomic.Int32
	rdb := newMemRedis()
	rdb.setErr = assert.AnError
	h := Idempotency(rdb, logging.Discard())(countingHandler(&calls, http.StatusOK))

	req := httptest.NewRequest(http.MethodPost, "/api/fund-treasury", nil)
	req.Header.Set(IdempotencyHeader, "k")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, calls.Load())
}

func TestIdempotencyRenewsLockDuringLongRequest(t *testing.T) {
	saved := lockRefreshInterval
	lockRefreshInterval = 5 * time.Millisecond
	defer func() { lockRefreshInterval = saved }()

	rdb := newMemRedis()
	lockKey := LockKeyPrefix + "/api/pay-all-salaries:long"
	h := Idempotency(rdb, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/pay-all-salaries", nil)
	req.Header.Set(IdempotencyHeader, "long")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.GreaterOrEqual(t, rdb.renewals(), 2, "lock renewed while the handler ran")
	rdb.mu.Lock()
	assert.NotContains(t, rdb.data, lockKey)
	rdb.mu.Unlock()

	after := rdb.renewals()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, rdb.renewals(), "renewal stops with the request")
}

func TestRateLimiter(t *testing.T) {
	var calls atomic.Int32
	rl := NewRateLimiter(1, 2, logging.Discard())
	h := rl.Handler(countingHandler(&calls, http.StatusOK))

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodGet, "/api/employees", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)

	rl.Cleanup(1)
	assert.Empty(t, rl.limiters)
}

func TestCORS(t *testing.T) {
	var calls atomic.Int32
	h := CORS([]string{"http://payroll.test"})(countingHandler(&calls, http.StatusOK))

	req := httptest.NewRequest(http.MethodOptions, "/api/add-employee", nil)
	req.Header.Set("Origin", "http://payroll.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://payroll.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Zero(t, calls.Load())

	req = httptest.NewRequest(http.MethodGet, "/api/employees", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
