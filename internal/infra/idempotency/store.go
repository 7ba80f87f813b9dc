// Package idempotency deduplicates submissions by tenant-scoped client key.
//
// First writer wins: the first Begin for a key gets a ticket and must
// Complete (cache the response) or Abort (release the key). Concurrent
// duplicates observe either the in-flight marker or the cached response —
// never a second enqueue. Settled records expire after a bounded retention
// window; orphaned in-flight claims are reclaimed after a shorter TTL.
package idempotency

import (
	"sync"
	"time"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures the idempotency store.
type Config struct {
	// Retention bounds how long settled responses are cached (default 24h).
	Retention time.Duration

	// InFlightTTL bounds how long an unsettled claim blocks the key
	// (default 15m). A claimant that dies before Complete or Abort
	// releases the key once the TTL elapses instead of wedging it.
	InFlightTTL time.Duration

	// SweepInterval controls the janitor pass frequency (default 10m).
	SweepInterval time.Duration

	// Now is an injectable clock for testing.
	Now func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Retention:     24 * time.Hour,
		InFlightTTL:   15 * time.Minute,
		SweepInterval: 10 * time.Minute,
	}
}

// ─── Outcomes ───────────────────────────────────────────────────────────────

// Outcome classifies the result of a Begin call.
type Outcome int

const (
	Fresh    Outcome = iota // first writer — caller owns the ticket
	InFlight                // first writer has not settled yet
	Done                    // settled — cached response available
)

// String returns a human-readable outcome label.
func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "FRESH"
	case InFlight:
		return "IN_FLIGHT"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// ─── Records ────────────────────────────────────────────────────────────────

type record struct {
	settled   bool
	response  any
	createdAt time.Time
}

// Ticket identifies a claimed key so the winner can settle it.
type Ticket struct {
	key string
}

// ─── Store ──────────────────────────────────────────────────────────────────

// Store is the in-memory idempotency cache.
// All mutation happens under one mutex — Begin is an atomic
// check-and-set, never a read-then-write race.
type Store struct {
	mu      sync.Mutex
	config  Config
	records map[string]*record
	now     func() time.Time

	// Stats
	hits   int64
	misses int64
}

// NewStore creates an idempotency store.
func NewStore(cfg Config) *Store {
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.InFlightTTL <= 0 {
		cfg.InFlightTTL = 15 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		config:  cfg,
		records: make(map[string]*record),
		now:     cfg.Now,
	}
}

// scopedKey namespaces a client key by tenant so two tenants can reuse
// the same Idempotency-Key value without colliding.
func scopedKey(tenant, key string) string {
	return tenant + "\x1f" + key
}

// Begin claims (tenant, key). Exactly one concurrent caller per key
// observes Fresh; that caller must settle the ticket via Complete or
// Abort. Later callers see InFlight until settled, then Done with the
// cached response.
func (s *Store) Begin(tenant, key string) (Ticket, Outcome, any) {
	k := scopedKey(tenant, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[k]; ok {
		if s.expiredLocked(rec) {
			delete(s.records, k)
		} else if rec.settled {
			s.hits++
			return Ticket{}, Done, rec.response
		} else {
			s.hits++
			return Ticket{}, InFlight, nil
		}
	}

	s.records[k] = &record{createdAt: s.now()}
	s.misses++
	return Ticket{key: k}, Fresh, nil
}

// Complete caches the response for a claimed key. Duplicates arriving
// after this observe Done and receive response.
func (s *Store) Complete(t Ticket, response any) {
	if t.key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[t.key]; ok {
		rec.settled = true
		rec.response = response
		rec.createdAt = s.now() // retention counts from settlement
	}
}

// Abort releases a claimed key so a retry can proceed fresh.
// Used when admission fails after the idempotency check.
func (s *Store) Abort(t Ticket) {
	if t.key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, t.key)
}

// Lookup returns the cached response for (tenant, key) without claiming it.
func (s *Store) Lookup(tenant, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[scopedKey(tenant, key)]
	if !ok || !rec.settled || s.expiredLocked(rec) {
		return nil, false
	}
	return rec.response, true
}

func (s *Store) expiredLocked(rec *record) bool {
	age := s.now().Sub(rec.createdAt)
	if rec.settled {
		return age > s.config.Retention
	}
	return age > s.config.InFlightTTL
}

// ─── Janitor ────────────────────────────────────────────────────────────────

// Sweep removes expired records. Returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for k, rec := range s.records {
		if s.expiredLocked(rec) {
			delete(s.records, k)
			dropped++
		}
	}
	return dropped
}

// Run sweeps expired records until done is closed.
func (s *Store) Run(done <-chan struct{}) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// ─── Stats ──────────────────────────────────────────────────────────────────

// Stats is a point-in-time view of the store.
type Stats struct {
	Records int   `json:"records"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Stats returns current store statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Records: len(s.records),
		Hits:    s.hits,
		Misses:  s.misses,
	}
}
