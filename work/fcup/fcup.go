package fcup

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"go.uber.org/ratelimit"
	"howett.net/plist"
)

// The envelope constants come straight from the AirPlay FCUP
// (fetch-content-URL-proxy) protocol and must not change: the casting
// client matches on them when deciding to service a reverse fetch.
const (
	envelopeType = "unhandledURLRequest"

	sessionIDConst  = 1
	clientInfoConst = 1
	clientRefConst  = 40030004

	// Canned user agent the client expects to see on proxied fetches.
	userAgent = "AppleCoreMedia/1.0.0.11B554a (Apple TV; U; CPU OS 7_0_4 like Mac OS X; en_us"

	eventPath   = "/event"
	contentType = "text/x-apple-plist+xml"
)

// Envelope is the plist document POSTed to the client over the reverse
// connection. Field order matters for byte-stable output, which is why
// these are structs and not maps.
type Envelope struct {
	SessionID int     `plist:"sessionID"`
	Type      string  `plist:"type"`
	Request   Request `plist:"request"`
}

// Request carries the actual fetch order inside the envelope.
type Request struct {
	ClientInfo int    `plist:"FCUP_Response_ClientInfo"`
	ClientRef  int    `plist:"FCUP_Response_ClientRef"`
	RequestID  int    `plist:"FCUP_Response_RequestID"`
	URL        string `plist:"FCUP_Response_URL"`
	SessionID  int    `plist:"SessionID"`
	Header     Header `plist:"FCUP_Response_Header"`
}

// Header holds the HTTP headers the client should attach to its fetch.
type Header struct {
	PlaybackSessionID string `plist:"X-Playback-Session-ID"`
	UserAgent         string `plist:"User-Agent"`
}

// Sender writes FCUP fetch requests onto one session's reverse channel.
// The transport is the raw upgraded connection from the /reverse handshake;
// requests are framed as HTTP POSTs by hand because no HTTP client can
// drive an already-upgraded server-to-client connection. Sends are paced by
// a rate limiter and serialized by a mutex so concurrent callers can't
// interleave bytes on the socket.
type Sender struct {
	mu        sync.Mutex
	transport io.Writer
	limiter   ratelimit.Limiter
}

// NewSender wraps transport in a Sender limited to perSec requests per
// second.
func NewSender(transport io.Writer, perSec int) *Sender {
	return &Sender{
		transport: transport,
		limiter:   ratelimit.New(perSec),
	}
}

// SendFetchRequest serializes the unhandledURLRequest envelope for uri and
// writes it to the transport as a POST /event. The returned error covers
// marshaling and transport writes; callers treat both as one abandoned
// fetch round.
func (s *Sender) SendFetchRequest(uri string, sessionID string, requestID int) error {
	body, err := EncodeEnvelope(uri, sessionID, requestID)
	if err != nil {
		return fmt.Errorf("encode fcup envelope: %w", err)
	}

	frame := FrameEventRequest(sessionID, body)

	s.limiter.Take()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.transport.Write(frame); err != nil {
		return fmt.Errorf("write reverse request: %w", err)
	}
	return nil
}

// EncodeEnvelope builds the XML plist body of one fetch request.
func EncodeEnvelope(uri string, sessionID string, requestID int) ([]byte, error) {
	env := Envelope{
		SessionID: sessionIDConst,
		Type:      envelopeType,
		Request: Request{
			ClientInfo: clientInfoConst,
			ClientRef:  clientRefConst,
			RequestID:  requestID,
			URL:        uri,
			SessionID:  sessionIDConst,
			Header: Header{
				PlaybackSessionID: sessionID,
				UserAgent:         userAgent,
			},
		},
	}
	return plist.MarshalIndent(env, plist.XMLFormat, "\t")
}

// FrameEventRequest wraps a plist body in the reverse-HTTP POST /event
// request the client expects on the upgraded connection.
func FrameEventRequest(sessionID string, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "POST %s HTTP/1.1\r\n", eventPath)
	fmt.Fprintf(&b, "X-Apple-Session-ID: %s\r\n", sessionID)
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("\r\n")
	b.Write(body)
	return b.Bytes()
}
