package airplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

func TestParsePlayRequestPlist(t *testing.T) {
	body, err := plist.MarshalIndent(map[string]interface{}{
		"uuid":                   "F0A230C8-35D3-4D46-B9E4-E868B7B23D81",
		"Content-Location":       "mlhls://localhost/master.m3u8",
		"Start-Position-Seconds": 17.5,
	}, plist.XMLFormat, "\t")
	require.NoError(t, err)

	req, err := ParsePlayRequest("application/x-apple-binary-plist", body)
	require.NoError(t, err)
	assert.Equal(t, "F0A230C8-35D3-4D46-B9E4-E868B7B23D81", req.UUID)
	assert.Equal(t, "mlhls://localhost/master.m3u8", req.ContentLocation)
	assert.Equal(t, 17.5, req.StartPositionSeconds)
}

func TestParsePlayRequestTextParameters(t *testing.T) {
	body := []byte("Content-Location: nfhls://localhost/master.m3u8\r\nStart-Position: 42.25\r\n")

	req, err := ParsePlayRequest("text/parameters", body)
	require.NoError(t, err)
	assert.Equal(t, "nfhls://localhost/master.m3u8", req.ContentLocation)
	assert.Equal(t, 42.25, req.StartPositionSeconds)
	assert.Empty(t, req.UUID)
}

func TestParsePlayRequestMissingLocation(t *testing.T) {
	body, err := plist.MarshalIndent(map[string]interface{}{
		"uuid": "F0A230C8-35D3-4D46-B9E4-E868B7B23D81",
	}, plist.XMLFormat, "\t")
	require.NoError(t, err)

	_, err = ParsePlayRequest("application/x-apple-binary-plist", body)
	assert.Error(t, err)

	_, err = ParsePlayRequest("text/parameters", []byte("Start-Position: 5\r\n"))
	assert.Error(t, err)
}

func TestParsePlayRequestGarbage(t *testing.T) {
	_, err := ParsePlayRequest("application/x-apple-binary-plist", []byte("garbage"))
	assert.Error(t, err)
}
