package fcup

import (
	"errors"
	"fmt"

	"howett.net/plist"
)

// ResponseType is the envelope type the client uses when delivering the
// bytes of a proxied fetch back through POST /action.
const ResponseType = "unhandledURLResponse"

// ErrMalformedResponse marks an /action payload that decoded but lacks the
// fields a fetch response must carry.
var ErrMalformedResponse = errors.New("fcup: malformed unhandledURLResponse")

// ActionEnvelope is the decoded shape of an /action plist body.
type ActionEnvelope struct {
	SessionID int      `plist:"sessionID"`
	Type      string   `plist:"type"`
	Params    Response `plist:"params"`
}

// Response carries the result of one proxied fetch.
type Response struct {
	URL        string `plist:"FCUP_Response_URL"`
	Data       []byte `plist:"FCUP_Response_Data"`
	RequestID  int    `plist:"FCUP_Response_RequestID"`
	StatusCode int    `plist:"FCUP_Response_StatusCode"`
	ClientRef  int    `plist:"FCUP_Response_ClientRef"`
}

// DecodeAction parses an /action body (binary or XML plist, auto-detected)
// and validates that it is a well-formed unhandledURLResponse. Payloads of
// a different type, or ones missing the URL or data fields, return
// ErrMalformedResponse.
func DecodeAction(data []byte) (*ActionEnvelope, error) {
	var env ActionEnvelope
	if _, err := plist.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode action plist: %w", err)
	}

	if env.Type != ResponseType {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrMalformedResponse, env.Type)
	}
	if env.Params.URL == "" {
		return nil, fmt.Errorf("%w: missing FCUP_Response_URL", ErrMalformedResponse)
	}
	if env.Params.Data == nil {
		return nil, fmt.Errorf("%w: missing FCUP_Response_Data", ErrMalformedResponse)
	}

	return &env, nil
}
