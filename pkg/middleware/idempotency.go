package middleware

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	apperrors "staybook/pkg/errors"
)

const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"
)

type replay struct {
	status    int
	header    http.Header
	body      []byte
	expiresAt time.Time
}

// IdempotencyStore keeps successful responses per scoped key and tracks
// keys whose first request is still running.
type IdempotencyStore struct {
	mu       sync.Mutex
	replays  map[string]*replay
	inFlight map[string]struct{}
	ttl      time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	s := &IdempotencyStore{
		replays:  make(map[string]*replay),
		inFlight: make(map[string]struct{}),
		ttl:      ttl,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go s.evictLoop(min(ttl, time.Hour))
	return s
}

// begin returns the stored replay for key, or claims key for the caller.
// claimed is false when another request holds the key.
func (s *IdempotencyStore) begin(key string) (cached *replay, claimed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.replays[key]; ok {
		if s.now().Before(r.expiresAt) {
			return r, false
		}
		delete(s.replays, key)
	}
	if _, busy := s.inFlight[key]; busy {
		return nil, false
	}
	s.inFlight[key] = struct{}{}
	return nil, true
}

// finish releases key and stores r when it is not nil.
func (s *IdempotencyStore) finish(key string, r *replay) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, key)
	if r != nil {
		r.expiresAt = s.now().Add(s.ttl)
		s.replays[key] = r
	}
}

func (s *IdempotencyStore) evictLoop(every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evict()
		case <-s.stopCh:
			return
		}
	}
}

func (s *IdempotencyStore) evict() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, r := range s.replays {
		if !now.Before(r.expiresAt) {
			delete(s.replays, key)
		}
	}
}

func (s *IdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency replays the first 2xx response for a repeated
// Idempotency-Key on a write request. Keys are scoped to the caller, the
// method and the path. A repeat that arrives while the first request is
// still running gets 409.
func Idempotency(store *IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := idempotencyScope(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			cached, claimed := store.begin(key)
			switch {
			case cached != nil:
				writeReplay(w, cached)
				return
			case !claimed:
				_ = apperrors.WriteError(w, apperrors.Conflict("A request with this Idempotency-Key is still in progress"))
				return
			}

			rec := &recordingWriter{ResponseWriter: w}
			var stored *replay
			defer func() { store.finish(key, stored) }()

			next.ServeHTTP(rec, r)
			if rec.status >= 200 && rec.status < 300 {
				stored = &replay{status: rec.status, header: w.Header().Clone(), body: rec.body.Bytes()}
			}
		})
	}
}

func idempotencyScope(r *http.Request) string {
	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" {
		return ""
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return ""
	}
	return UserIDExtractor(r) + "|" + r.Method + " " + r.URL.Path + "|" + key
}

func writeReplay(w http.ResponseWriter, r *replay) {
	for name, values := range r.header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set(IdempotentReplayedHeader, "true")
	w.WriteHeader(r.status)
	_, _ = w.Write(r.body)
}
