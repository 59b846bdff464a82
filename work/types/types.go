package types

// FetchSender emits one out-of-band fetch request over the reverse channel,
// asking the casting client to retrieve uri on the server's behalf. The
// request id correlates the eventual response; the session id rides along
// in the request headers. Implementations are best-effort: a returned error
// means the request never left, and no retry happens at this layer.
type FetchSender interface {
	SendFetchRequest(uri string, sessionID string, requestID int) error
}

// Player is the seam to the local media player that ultimately renders the
// rewritten HLS stream. Implementations must be safe to call from HTTP
// handler goroutines.
type Player interface {
	// Play starts playback of location, seeking to startPosMs milliseconds.
	Play(location string, startPosMs float64) error
	// Stop ends the current playback, if any.
	Stop()
	// SetRate sets the playback rate (0 pauses, 1 plays).
	SetRate(rate float64)
	// Seek jumps to the given position in seconds.
	Seek(positionSecs float64)
}
