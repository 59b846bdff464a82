package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"aircast/work/airplay"
	"aircast/work/config"
	"aircast/work/fcup"
	"aircast/work/logger"
	"aircast/work/utils"
)

// sessionID pulls the AirPlay session header off a control request.
func sessionID(r *http.Request) string {
	return r.Header.Get("X-Apple-Session-ID")
}

// HandlePlay handles POST /play: parse the play request body, record the
// playback uuid and start position, and either kick off the
// fetch-and-rewrite protocol or fall back to direct playback.
func HandlePlay(mgr *airplay.Manager, cfg *config.Config, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := sessionID(r)
		if sid == "" {
			lg.Error("play request had no X-Apple-Session-ID")
			http.Error(w, "missing X-Apple-Session-ID", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil || len(body) == 0 {
			http.Error(w, "empty play request", http.StatusBadRequest)
			return
		}

		req, err := airplay.ParsePlayRequest(r.Header.Get("Content-Type"), body)
		if err != nil {
			lg.Error("invalid play request for session %s: %v", utils.ShortSessionID(sid), err)
			http.Error(w, "invalid play request", http.StatusBadRequest)
			return
		}

		if err := mgr.Play(sid, req); err != nil {
			switch {
			case errors.Is(err, airplay.ErrUnknownSession):
				http.Error(w, "no reverse channel for session", http.StatusBadRequest)
			case errors.Is(err, airplay.ErrUnsupportedScheme):
				lg.Error("unsupported scheme in play location %s", utils.LogURL(cfg, req.ContentLocation))
				http.Error(w, "unsupported scheme", http.StatusBadRequest)
			default:
				http.Error(w, "play failed", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// HandleAction handles POST /action: the client delivering the bytes of a
// proxied fetch. Malformed payloads are rejected; session mismatches are
// absorbed inside the store without touching state.
func HandleAction(mgr *airplay.Manager, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := sessionID(r)
		if sid == "" {
			http.Error(w, "missing X-Apple-Session-ID", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "unreadable action body", http.StatusBadRequest)
			return
		}

		if err := mgr.HandleAction(sid, body); err != nil {
			switch {
			case errors.Is(err, fcup.ErrMalformedResponse):
				lg.Warn("malformed action payload for session %s: %v", utils.ShortSessionID(sid), err)
				http.Error(w, "malformed action payload", http.StatusBadRequest)
			case errors.Is(err, airplay.ErrUnknownSession):
				http.Error(w, "unknown session", http.StatusBadRequest)
			default:
				lg.Warn("action rejected for session %s: %v", utils.ShortSessionID(sid), err)
				http.Error(w, "action rejected", http.StatusBadRequest)
			}
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// HandleStop handles POST /stop: end playback and clear session state.
func HandleStop(mgr *airplay.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr.Stop(sessionID(r))
		w.WriteHeader(http.StatusOK)
	}
}

// HandleRate handles POST /rate?value=...: playback rate forwarded to the
// player (0 pauses, 1 plays).
func HandleRate(mgr *airplay.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
		if err != nil {
			http.Error(w, "invalid rate value", http.StatusBadRequest)
			return
		}
		mgr.Rate(sessionID(r), value)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleScrub handles POST /scrub?position=...: a seek forwarded to the
// player.
func HandleScrub(mgr *airplay.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		position, err := strconv.ParseFloat(r.URL.Query().Get("position"), 64)
		if err != nil {
			http.Error(w, "invalid scrub position", http.StatusBadRequest)
			return
		}
		mgr.Scrub(sessionID(r), position)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleReverse handles POST /reverse: the client upgrading this connection
// into the reverse HTTP channel fetch requests travel over. The connection
// is hijacked, the upgrade acknowledged, and the raw socket registered as
// the session transport.
func HandleReverse(mgr *airplay.Manager, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := sessionID(r)
		if sid == "" {
			http.Error(w, "missing X-Apple-Session-ID", http.StatusBadRequest)
			return
		}

		upgrade := r.Header.Get("Upgrade")
		if upgrade == "" {
			upgrade = "PTTH/1.0"
		}
		lg.Info("client requested reverse connection for session %s (purpose %q)",
			utils.ShortSessionID(sid), r.Header.Get("X-Apple-Session-Purpose"))

		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "reverse channel needs a hijackable connection", http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			lg.Error("hijacking reverse connection failed: %v", err)
			return
		}

		if _, err := conn.Write([]byte("HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: " + upgrade + "\r\n\r\n")); err != nil {
			lg.Error("acknowledging reverse upgrade failed: %v", err)
			conn.Close()
			return
		}

		mgr.RegisterTransport(sid, conn)
	}
}

// HandleMedia serves rewritten manifests from the resource cache to the
// local player. Mounted as the media server's catch-all GET route.
func HandleMedia(mgr *airplay.Manager, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := mgr.QueryMediaData(r.URL.Path)
		if !ok {
			lg.Debug("media request for uncached path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, body); err != nil {
			lg.Warn("writing media response for %s failed: %v", r.URL.Path, err)
		}
	}
}
