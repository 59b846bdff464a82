package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manifestHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	io.WriteString(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1000000\nhttp://localhost:7100/v.m3u8\n")
}

func TestGzipMiddlewareCompresses(t *testing.T) {
	handler := GzipMiddleware(manifestHandler)

	r := httptest.NewRequest("GET", "/master.m3u8", nil)
	r.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler(w, r)

	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	defer gz.Close()
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "#EXTM3U"))
}

func TestGzipMiddlewarePassthrough(t *testing.T) {
	handler := GzipMiddleware(manifestHandler)

	r := httptest.NewRequest("GET", "/master.m3u8", nil)
	w := httptest.NewRecorder()
	handler(w, r)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "#EXTM3U"))
}
