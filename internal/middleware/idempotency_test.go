package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*IdempotencyEntry
	getErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]*IdempotencyEntry)}
}

func (s *memoryStore) Get(_ context.Context, key string) (*IdempotencyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.entries[key], nil
}

func (s *memoryStore) Set(_ context.Context, e *IdempotencyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Key] = e
	return nil
}

func countingHandler(status int, body string) (http.Handler, *int) {
	calls := 0
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}), &calls
}

func post(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments", nil)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	next, calls := countingHandler(http.StatusCreated, `{"id":"p-1"}`)
	h := Idempotency(store, time.Hour)(next)

	first := post(h, "key-1")
	second := post(h, "key-1")

	assert.Equal(t, 1, *calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replayed"))

	e := store.entries["key-1"]
	require.NotNil(t, e)
	assert.WithinDuration(t, e.CreatedAt.Add(time.Hour), e.ExpiresAt, time.Second)
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	store := newMemoryStore()
	next, calls := countingHandler(http.StatusCreated, `{}`)
	h := Idempotency(store, time.Hour)(next)

	post(h, "")
	post(h, "")

	assert.Equal(t, 2, *calls)
	assert.Empty(t, store.entries)
}

func TestIdempotency_ServerErrorsNotStored(t *testing.T) {
	store := newMemoryStore()
	next, calls := countingHandler(http.StatusInternalServerError, `{"error":"boom"}`)
	h := Idempotency(store, time.Hour)(next)

	post(h, "key-2")
	post(h, "key-2")

	assert.Equal(t, 2, *calls)
	assert.Empty(t, store.entries)
}

func TestIdempotency_ClientErrorsStored(t *testing.T) {
	store := newMemoryStore()
	next, calls := countingHandler(http.StatusUnprocessableEntity, `{"error":"validation failed"}`)
	h := Idempotency(store, time.Hour)(next)

	post(h, "key-3")
	w := post(h, "key-3")

	assert.Equal(t, 1, *calls)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestIdempotency_LookupErrorRunsHandler(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("redis down")
	next, calls := countingHandler(http.StatusCreated, `{}`)
	h := Idempotency(store, time.Hour)(next)

	w := post(h, "key-4")

	assert.Equal(t, 1, *calls)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestIdempotency_LargeBodyNotStored(t *testing.T) {
	store := newMemoryStore()
	large := string(bytes.Repeat([]byte("x"), maxIdempotencyBodySize+100))
	next, _ := countingHandler(http.StatusOK, large)
	h := Idempotency(store, time.Hour)(next)

	w := post(h, "key-5")

	assert.Equal(t, len(large), w.Body.Len())
	assert.Empty(t, store.entries)
}
