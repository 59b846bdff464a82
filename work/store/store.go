package store

import (
	"sync"
	"sync/atomic"
	"time"

	"aircast/work/config"
	"aircast/work/logger"
	"aircast/work/metrics"
	"aircast/work/parser"
	"aircast/work/rewrite"
	"aircast/work/types"
	"aircast/work/utils"
)

// Store is the manifest fetch-and-rewrite state machine for one casting
// session. A play request seeds it with a restricted-scheme primary URI;
// the store then drives an unbounded sequence of reverse-channel fetch
// round-trips, rewriting and caching every document the client delivers,
// until the pending queue drains and the rewritten primary URI can be
// handed to the local player.
//
// Concurrency contract: the resource cache is the only state shared with
// the media server goroutines and is guarded by its own mutex. Everything
// else (queue, counters, session identity) is mutated only by the protocol
// sequence RequestMediaData → ProcessMediaData*, which the surrounding
// orchestrator serializes — the client answers one fetch request at a time.
type Store struct {
	cfg    *config.Config
	lg     *logger.Logger
	sender types.FetchSender

	hostPort string // host:port of the local media server

	origin       rewrite.Origin
	requestID    int
	sessionID    string
	playbackUUID string
	startPosMs   float64
	primaryURI   string
	pending      []string // LIFO: last pushed is fetched next

	awaitingSince atomic.Int64 // unix nanos of the outstanding fetch request, 0 when idle

	mu    sync.Mutex // guards cache only
	cache map[string]string
}

// New creates a Store bound to the given reverse-channel sender. The
// rewritten manifests point at cfg.MediaHostPort().
func New(cfg *config.Config, lg *logger.Logger, sender types.FetchSender) *Store {
	return &Store{
		cfg:      cfg,
		lg:       lg,
		sender:   sender,
		hostPort: cfg.MediaHostPort(),
		origin:   rewrite.OriginUnknown,
		cache:    make(map[string]string),
	}
}

// RequestMediaData starts a new play attempt. Any previous attempt's state
// is dropped first. If primaryURI carries a recognized restricted scheme,
// the session identity is stored, the rewritten primary URI is computed,
// and one fetch request for the original (unrewritten) URI goes out over
// the reverse channel; the return value is true. An unrecognized scheme
// returns false and the caller falls back to ordinary playback.
func (s *Store) RequestMediaData(primaryURI string, sessionID string) bool {
	s.Reset()

	origin := rewrite.Classify(primaryURI)
	if origin == rewrite.OriginUnknown {
		// Not a restricted m3u8 uri
		return false
	}

	s.origin = origin
	s.sessionID = sessionID
	s.primaryURI = rewrite.PrimaryURI(primaryURI, s.hostPort)

	if s.cfg.Debug {
		s.lg.Debug("store: %s play attempt, primary %s rewritten to %s",
			origin, utils.LogURL(s.cfg, primaryURI), utils.LogURL(s.cfg, s.primaryURI))
	}

	// The client fetches from its own network, so the fetch request names
	// the original URI, never the rewritten one.
	s.emitFetchRequest(primaryURI)
	return true
}

// ProcessMediaData handles one client fetch response: the raw bytes of uri
// as retrieved by the casting client. Primary manifests are parsed for
// child references (media alternates first, then stream variants, pushed in
// parser order); the body is rewritten per the session origin and cached
// under its local path; and either the next pending URI is requested or,
// with the queue empty, the rewritten primary URI is returned as the final
// playback location. An empty return means the round-trip continues.
//
// A sessionID that doesn't match the current session leaves all state
// untouched. requestID is informational only: the original URL is what
// correlates a response, the id is just logged when it disagrees.
func (s *Store) ProcessMediaData(uri string, data []byte, sessionID string, requestID int) string {
	if sessionID != s.sessionID {
		s.lg.Warn("store: dropping response for session %s (current %s)",
			utils.ShortSessionID(sessionID), utils.ShortSessionID(s.sessionID))
		metrics.MediaResponses.WithLabelValues("rejected").Inc()
		metrics.SessionErrors.WithLabelValues("session_mismatch").Inc()
		return ""
	}
	if requestID != s.requestID-1 && s.cfg.Debug {
		s.lg.Debug("store: response request id %d, expected %d", requestID, s.requestID-1)
	}

	var body string
	if rewrite.IsPrimaryManifestURI(uri) {
		mediaURIs, variantURIs, err := parser.ExtractChildURIs(data)
		if err != nil {
			// Non-fatal: cache whatever we got and keep draining the queue.
			s.lg.Warn("store: unparseable primary manifest %s: %v", utils.LogURL(s.cfg, uri), err)
		}

		// Save all media uris, then all stream variant uris
		s.pending = append(s.pending, mediaURIs...)
		s.pending = append(s.pending, variantURIs...)

		body = rewrite.PrimaryBody(s.origin, string(data), s.hostPort)
	} else {
		body = rewrite.SecondaryBody(string(data))
	}

	path := rewrite.LocalPath(s.origin, uri)
	if path != "" && body != "" {
		s.addMediaData(path, body)
	}

	if len(s.pending) == 0 {
		// Queue drained: this play attempt is fully resolved.
		s.awaitingSince.Store(0)
		metrics.MediaResponses.WithLabelValues("resolved").Inc()
		return s.primaryURI
	}

	next := s.pending[len(s.pending)-1]
	s.pending = s.pending[:len(s.pending)-1]
	s.emitFetchRequest(next)
	metrics.MediaResponses.WithLabelValues("cached").Inc()
	return ""
}

// QueryMediaData is the read side for the media server: a cache lookup by
// local path with no side effects, safe to call concurrently with an
// in-flight fetch round-trip.
func (s *Store) QueryMediaData(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.cache[path]
	return body, ok
}

// Reset clears the attempt-scoped state: origin, counters, session
// identity, queue and cache. The playback uuid is not attempt-scoped — the
// client supplies it on the play request, before the attempt begins — so it
// rides across resets. Idempotent; called on Stop and at the start of every
// play attempt.
func (s *Store) Reset() {
	s.origin = rewrite.OriginUnknown
	s.requestID = 1
	s.sessionID = ""
	s.primaryURI = ""
	s.pending = nil
	s.awaitingSince.Store(0)

	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
	metrics.CachedResources.Set(0)
}

// emitFetchRequest sends one fetch request over the reverse channel and
// advances the request counter. Write failures are logged and absorbed:
// there is no retry at this layer, a stalled attempt is reaped by the
// watchdog.
func (s *Store) emitFetchRequest(uri string) {
	metrics.FetchRequests.WithLabelValues(s.origin.String()).Inc()
	s.awaitingSince.Store(time.Now().UnixNano())

	if err := s.sender.SendFetchRequest(uri, s.sessionID, s.requestID); err != nil {
		s.lg.Error("store: fetch request %d for %s failed: %v",
			s.requestID, utils.LogURL(s.cfg, uri), err)
		metrics.SessionErrors.WithLabelValues("transport_write").Inc()
	}
	s.requestID++
}

// addMediaData stores one rewritten body under its local path, overwriting
// any previous entry. Only the map mutation holds the lock; rewriting and
// parsing happen outside it.
func (s *Store) addMediaData(path string, body string) {
	s.mu.Lock()
	s.cache[path] = body
	entries := len(s.cache)
	s.mu.Unlock()
	metrics.CachedResources.Set(float64(entries))

	if s.cfg.Debug {
		s.lg.Debug("store: cached %d bytes at %s (%d entries)", len(body), path, entries)
	}
}

// AwaitingSince returns when the outstanding fetch request was emitted, or
// the zero time when no round-trip is in flight. Used by the watchdog.
func (s *Store) AwaitingSince() time.Time {
	ns := s.awaitingSince.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Origin returns the app origin of the current play attempt.
func (s *Store) Origin() rewrite.Origin {
	return s.origin
}

// PrimaryURI returns the rewritten root playback URI for the current
// attempt, empty when no attempt is active.
func (s *Store) PrimaryURI() string {
	return s.primaryURI
}

// RequestID returns the next fetch request id.
func (s *Store) RequestID() int {
	return s.requestID
}

// SessionID returns the stored session identity.
func (s *Store) SessionID() string {
	return s.sessionID
}

// SetSessionID replaces the stored session identity.
func (s *Store) SetSessionID(sessionID string) {
	s.sessionID = sessionID
}

// CheckSessionID reports whether sessionID matches the stored identity.
func (s *Store) CheckSessionID(sessionID string) bool {
	return s.sessionID == sessionID
}

// SetPlaybackUUID records the client-supplied correlation id for the
// current play attempt.
func (s *Store) SetPlaybackUUID(uuid string) {
	s.playbackUUID = uuid
}

// PlaybackUUID returns the client-supplied correlation id.
func (s *Store) PlaybackUUID() string {
	return s.playbackUUID
}

// SetStartPosMs records the client-requested start position.
func (s *Store) SetStartPosMs(ms float64) {
	s.startPosMs = ms
}

// StartPosMs returns the client-requested start position.
func (s *Store) StartPosMs() float64 {
	return s.startPosMs
}

// Snapshot returns a copy of the resource cache, taken under the cache
// lock. Used by the persistence sink so writes happen off the protocol
// goroutine against a stable view.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[string]string, len(s.cache))
	for path, body := range s.cache {
		snap[path] = body
	}
	return snap
}

// CacheLen returns the number of cached resources, for the status endpoint.
func (s *Store) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}
