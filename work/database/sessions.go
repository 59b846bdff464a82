package database

import (
	"time"
)

// CastSession is one resolved casting attempt as persisted.
type CastSession struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"sessionId"`
	PlaybackUUID string    `json:"playbackUuid"`
	Origin       string    `json:"origin"`
	PrimaryURI   string    `json:"primaryUri"`
	StartPosMs   float64   `json:"startPosMs"`
	ResolvedAt   time.Time `json:"resolvedAt"`
}

// SaveSession records one resolved casting attempt.
func (db *DB) SaveSession(sessionID, playbackUUID, origin, primaryURI string, startPosMs float64) error {
	_, err := db.Exec(`INSERT INTO cast_sessions (session_id, playback_uuid, origin, primary_uri, start_pos_ms)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, playbackUUID, origin, primaryURI, startPosMs)
	return err
}

// SaveResource records one rewritten manifest body under its served path.
func (db *DB) SaveResource(sessionID, path, body string) error {
	_, err := db.Exec(`INSERT INTO cast_resources (session_id, path, body) VALUES (?, ?, ?)`,
		sessionID, path, body)
	return err
}

// RecentSessions returns the latest resolved sessions, newest first.
func (db *DB) RecentSessions(limit int) ([]CastSession, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`SELECT id, session_id, playback_uuid, origin, primary_uri, start_pos_ms, resolved_at
		FROM cast_sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []CastSession
	for rows.Next() {
		var s CastSession
		if err := rows.Scan(&s.ID, &s.SessionID, &s.PlaybackUUID, &s.Origin, &s.PrimaryURI, &s.StartPosMs, &s.ResolvedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
