package fcup

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

func TestEncodeEnvelope(t *testing.T) {
	body, err := EncodeEnvelope("mlhls://localhost/master.m3u8", "sess-1", 7)
	require.NoError(t, err)

	xml := string(body)
	assert.Contains(t, xml, "<key>type</key>")
	assert.Contains(t, xml, "<string>unhandledURLRequest</string>")
	assert.Contains(t, xml, "<key>FCUP_Response_URL</key>")
	assert.Contains(t, xml, "<string>mlhls://localhost/master.m3u8</string>")
	assert.Contains(t, xml, "<key>FCUP_Response_RequestID</key>")
	assert.Contains(t, xml, "<integer>7</integer>")
	assert.Contains(t, xml, "<integer>40030004</integer>")
	assert.Contains(t, xml, "<key>X-Playback-Session-ID</key>")
	assert.Contains(t, xml, "<string>sess-1</string>")
	assert.Contains(t, xml, "AppleCoreMedia/1.0.0.11B554a")

	// The envelope must round-trip through a plist decoder
	var env Envelope
	_, err = plist.Unmarshal(body, &env)
	require.NoError(t, err)
	assert.Equal(t, 1, env.SessionID)
	assert.Equal(t, "unhandledURLRequest", env.Type)
	assert.Equal(t, 7, env.Request.RequestID)
	assert.Equal(t, "mlhls://localhost/master.m3u8", env.Request.URL)
}

func TestFrameEventRequest(t *testing.T) {
	body := []byte("<plist/>")
	frame := FrameEventRequest("sess-1", body)

	text := string(frame)
	assert.True(t, bytes.HasPrefix(frame, []byte("POST /event HTTP/1.1\r\n")))
	assert.Contains(t, text, "X-Apple-Session-ID: sess-1\r\n")
	assert.Contains(t, text, "Content-Type: text/x-apple-plist+xml\r\n")
	assert.Contains(t, text, fmt.Sprintf("Content-Length: %d\r\n", len(body)))
	assert.True(t, bytes.HasSuffix(frame, append([]byte("\r\n\r\n"), body...)))
}

func TestSenderWritesFramedRequest(t *testing.T) {
	var buf bytes.Buffer
	sender := NewSender(&buf, 50)

	err := sender.SendFetchRequest("nfhls://localhost/master.m3u8", "sess-9", 1)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "POST /event HTTP/1.1")
	assert.Contains(t, out, "X-Apple-Session-ID: sess-9")
	assert.Contains(t, out, "nfhls://localhost/master.m3u8")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestSenderReportsWriteFailure(t *testing.T) {
	sender := NewSender(failingWriter{}, 50)
	err := sender.SendFetchRequest("mlhls://localhost/master.m3u8", "sess-1", 1)
	assert.Error(t, err)
}

func TestDecodeAction(t *testing.T) {
	payload := buildActionPlist(t, ResponseType, "mlhls://localhost/master.m3u8", []byte("#EXTM3U\n"))

	env, err := DecodeAction(payload)
	require.NoError(t, err)
	assert.Equal(t, "mlhls://localhost/master.m3u8", env.Params.URL)
	assert.Equal(t, []byte("#EXTM3U\n"), env.Params.Data)
	assert.Equal(t, 1, env.Params.RequestID)
}

func TestDecodeActionWrongType(t *testing.T) {
	payload := buildActionPlist(t, "somethingElse", "mlhls://localhost/master.m3u8", []byte("x"))

	_, err := DecodeAction(payload)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeActionMissingFields(t *testing.T) {
	noURL := buildActionPlist(t, ResponseType, "", []byte("x"))
	_, err := DecodeAction(noURL)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	// A response dict without any FCUP_Response_Data key at all
	noData := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>sessionID</key>
	<integer>1</integer>
	<key>type</key>
	<string>unhandledURLResponse</string>
	<key>params</key>
	<dict>
		<key>FCUP_Response_URL</key>
		<string>mlhls://localhost/master.m3u8</string>
	</dict>
</dict>
</plist>`)
	_, err = DecodeAction(noData)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeActionGarbage(t *testing.T) {
	_, err := DecodeAction([]byte("definitely not a plist"))
	assert.Error(t, err)
}

func buildActionPlist(t *testing.T, envType string, url string, data []byte) []byte {
	t.Helper()

	env := ActionEnvelope{
		SessionID: 1,
		Type:      envType,
		Params: Response{
			URL:        url,
			Data:       data,
			RequestID:  1,
			StatusCode: 200,
			ClientRef:  40030004,
		},
	}
	payload, err := plist.MarshalIndent(env, plist.XMLFormat, "\t")
	require.NoError(t, err)
	return payload
}
