package airplay

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"aircast/work/config"
	"aircast/work/database"
	"aircast/work/fcup"
	"aircast/work/logger"
	"aircast/work/metrics"
	"aircast/work/store"
	"aircast/work/types"
	"aircast/work/utils"

	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// ErrUnknownSession means no reverse channel has been registered for
	// the session id on the request.
	ErrUnknownSession = errors.New("airplay: unknown session")

	// ErrUnsupportedScheme means the play location is neither a
	// restricted casting URI nor plain http(s).
	ErrUnsupportedScheme = errors.New("airplay: unsupported scheme")
)

// Session binds one casting client to its media data store and reverse
// channel sender. Created when the client establishes its reverse
// connection, dropped on teardown.
type Session struct {
	ID    string
	Store *store.Store

	sender *fcup.Sender
}

// Manager owns all live casting sessions and runs the verbs the control
// server receives against them. It is the single owner of the player seam
// and of the optional persistence sink; both are driven through the worker
// pool so handler goroutines never block on them.
type Manager struct {
	cfg    *config.Config
	lg     *logger.Logger
	player types.Player
	pool   *ants.Pool
	db     *database.DB // nil when persistence is disabled

	sessions *xsync.MapOf[string, *Session]
}

// NewManager creates a Manager. db may be nil.
func NewManager(cfg *config.Config, lg *logger.Logger, player types.Player, pool *ants.Pool, db *database.DB) *Manager {
	return &Manager{
		cfg:      cfg,
		lg:       lg,
		player:   player,
		pool:     pool,
		db:       db,
		sessions: xsync.NewMapOf[string, *Session](),
	}
}

// RegisterTransport creates (or replaces) the session for sessionID, bound
// to the given reverse-channel transport. Called when the client's
// /reverse connection is upgraded.
func (m *Manager) RegisterTransport(sessionID string, transport io.Writer) *Session {
	sender := fcup.NewSender(transport, m.cfg.FetchesPerSec)
	sess := &Session{
		ID:     sessionID,
		Store:  store.New(m.cfg, m.lg, sender),
		sender: sender,
	}

	if _, replaced := m.sessions.LoadAndStore(sessionID, sess); replaced {
		m.lg.Warn("airplay: replacing reverse channel for session %s", utils.ShortSessionID(sessionID))
	} else {
		metrics.ActiveSessions.Inc()
	}
	m.lg.Info("airplay: session %s registered", utils.ShortSessionID(sessionID))
	return sess
}

// RemoveSession tears down the session, resetting its store.
func (m *Manager) RemoveSession(sessionID string) {
	if sess, ok := m.sessions.LoadAndDelete(sessionID); ok {
		sess.Store.Reset()
		metrics.ActiveSessions.Dec()
		m.lg.Info("airplay: session %s removed", utils.ShortSessionID(sessionID))
	}
}

// Session returns the session for sessionID.
func (m *Manager) Session(sessionID string) (*Session, bool) {
	return m.sessions.Load(sessionID)
}

// Play starts a casting attempt for the parsed play request. Restricted
// mlhls/nfhls locations go through the fetch-and-rewrite state machine;
// plain http(s) locations are handed to the player directly; anything else
// is rejected.
func (m *Manager) Play(sessionID string, req *PlayRequest) error {
	sess, ok := m.sessions.Load(sessionID)
	if !ok {
		return ErrUnknownSession
	}

	sess.Store.SetPlaybackUUID(req.UUID)
	sess.Store.SetStartPosMs(1000 * req.StartPositionSeconds)

	if sess.Store.RequestMediaData(req.ContentLocation, sessionID) {
		m.lg.Info("airplay: casting %s for session %s",
			utils.LogURL(m.cfg, req.ContentLocation), utils.ShortSessionID(sessionID))
		return nil
	}

	// Not a restricted casting URI: plain http(s) plays directly.
	if strings.HasPrefix(req.ContentLocation, "http://") || strings.HasPrefix(req.ContentLocation, "https://") {
		m.lg.Info("airplay: direct playback of %s", utils.LogURL(m.cfg, req.ContentLocation))
		m.startPlayback(req.ContentLocation, 1000*req.StartPositionSeconds)
		return nil
	}

	metrics.SessionErrors.WithLabelValues("unsupported_scheme").Inc()
	return fmt.Errorf("%w: %q", ErrUnsupportedScheme, req.ContentLocation)
}

// HandleAction processes one POST /action body: an unhandledURLResponse
// delivering the bytes of a proxied fetch. When the response resolves the
// play attempt, playback starts and the session is persisted. Malformed
// payloads are rejected without touching session state.
func (m *Manager) HandleAction(sessionID string, body []byte) error {
	env, err := fcup.DecodeAction(body)
	if err != nil {
		metrics.MediaResponses.WithLabelValues("rejected").Inc()
		metrics.SessionErrors.WithLabelValues("malformed_response").Inc()
		return err
	}

	sess, ok := m.sessions.Load(sessionID)
	if !ok {
		return ErrUnknownSession
	}

	location := sess.Store.ProcessMediaData(env.Params.URL, env.Params.Data, sessionID, env.Params.RequestID)
	if location == "" {
		return nil
	}

	m.lg.Info("airplay: session %s resolved to %s",
		utils.ShortSessionID(sessionID), utils.LogURL(m.cfg, location))
	m.startPlayback(location, sess.Store.StartPosMs())
	m.persistResolved(sess)
	return nil
}

// Stop ends the session's playback and drops all fetch/rewrite state.
func (m *Manager) Stop(sessionID string) {
	if sess, ok := m.sessions.Load(sessionID); ok {
		sess.Store.Reset()
	}
	m.player.Stop()
}

// Rate forwards a playback rate change to the player.
func (m *Manager) Rate(sessionID string, value float64) {
	m.lg.Debug("airplay: session %s rate %.2f", utils.ShortSessionID(sessionID), value)
	m.player.SetRate(value)
}

// Scrub forwards a seek to the player.
func (m *Manager) Scrub(sessionID string, position float64) {
	m.lg.Debug("airplay: session %s scrub %.2f", utils.ShortSessionID(sessionID), position)
	m.player.Seek(position)
}

// QueryMediaData serves a cached manifest body for the media server. The
// local player doesn't know session ids, so the path is looked up across
// all live sessions (in practice there is one).
func (m *Manager) QueryMediaData(path string) (string, bool) {
	var body string
	found := false
	m.sessions.Range(func(_ string, sess *Session) bool {
		if b, ok := sess.Store.QueryMediaData(path); ok {
			body = b
			found = true
			return false
		}
		return true
	})
	return body, found
}

// ReapStalled resets every session whose outstanding fetch request has been
// waiting on the client longer than timeout, returning how many were
// reaped. The watchdog calls this on its ticker.
func (m *Manager) ReapStalled(timeout time.Duration) int {
	reaped := 0
	now := time.Now()
	m.sessions.Range(func(id string, sess *Session) bool {
		since := sess.Store.AwaitingSince()
		if !since.IsZero() && now.Sub(since) > timeout {
			m.lg.Warn("airplay: reaping stalled play attempt for session %s (waited %s)",
				utils.ShortSessionID(id), now.Sub(since).Round(time.Second))
			sess.Store.Reset()
			metrics.WatchdogReaps.Inc()
			reaped++
		}
		return true
	})
	return reaped
}

// SessionCount returns the number of live sessions, for /status.
func (m *Manager) SessionCount() int {
	return m.sessions.Size()
}

// CachedResourceCount sums cached manifests across sessions, for /status.
func (m *Manager) CachedResourceCount() int {
	total := 0
	m.sessions.Range(func(_ string, sess *Session) bool {
		total += sess.Store.CacheLen()
		return true
	})
	return total
}

// startPlayback hands a location to the player on the worker pool so the
// protocol goroutine doesn't block on process spawn.
func (m *Manager) startPlayback(location string, startPosMs float64) {
	task := func() {
		if err := m.player.Play(location, startPosMs); err != nil {
			m.lg.Error("airplay: player failed for %s: %v", utils.LogURL(m.cfg, location), err)
		}
	}
	if err := m.pool.Submit(task); err != nil {
		// Pool saturated or released: run inline rather than dropping playback.
		task()
	}
}

// persistResolved writes the resolved session and its cached resources to
// sqlite, asynchronously and best-effort.
func (m *Manager) persistResolved(sess *Session) {
	if m.db == nil {
		return
	}

	sessionID := sess.ID
	uuid := sess.Store.PlaybackUUID()
	origin := sess.Store.Origin().String()
	primaryURI := sess.Store.PrimaryURI()
	startPosMs := sess.Store.StartPosMs()
	resources := sess.Store.Snapshot()

	task := func() {
		if err := m.db.SaveSession(sessionID, uuid, origin, primaryURI, startPosMs); err != nil {
			m.lg.Error("airplay: persisting session %s failed: %v", utils.ShortSessionID(sessionID), err)
			return
		}
		for path, body := range resources {
			if err := m.db.SaveResource(sessionID, path, body); err != nil {
				m.lg.Error("airplay: persisting resource %s failed: %v", path, err)
			}
		}
	}
	if err := m.pool.Submit(task); err != nil {
		task()
	}
}
