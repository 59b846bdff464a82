package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractChildURIsMaster(t *testing.T) {
	master := `#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="en",DEFAULT=YES,URI="mlhls://localhost/audio_en.m3u8"
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="de",DEFAULT=NO,URI="mlhls://localhost/audio_de.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1000000,RESOLUTION=640x360,AUDIO="aud"
mlhls://localhost/video_360.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=3000000,RESOLUTION=1280x720,AUDIO="aud"
mlhls://localhost/video_720.m3u8
`

	mediaURIs, variantURIs, err := ExtractChildURIs([]byte(master))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"mlhls://localhost/audio_en.m3u8",
		"mlhls://localhost/audio_de.m3u8",
	}, mediaURIs)
	assert.Equal(t, []string{
		"mlhls://localhost/video_360.m3u8",
		"mlhls://localhost/video_720.m3u8",
	}, variantURIs)
}

func TestExtractChildURIsMediaPlaylist(t *testing.T) {
	media := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:5
#EXTINF:5.0,
chunk_0.ts
#EXTINF:5.0,
chunk_1.ts
#EXT-X-ENDLIST
`

	mediaURIs, variantURIs, err := ExtractChildURIs([]byte(media))
	require.NoError(t, err)
	assert.Empty(t, mediaURIs)
	assert.Empty(t, variantURIs)
}

func TestExtractChildURIsFallbackScanner(t *testing.T) {
	// Restricted-scheme playlists that trip the strict decoder still yield
	// their children through the line scanner.
	garbled := "GARBAGE HEADER\n" +
		"#EXT-X-MEDIA:TYPE=AUDIO,URI=\"nfhls://audio/track.m3u8\"\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=1000\n" +
		"#EXT-X-SOME-VENDOR-TAG\n" +
		"nfhls://video/track.m3u8\n"

	mediaURIs, variantURIs, err := ExtractChildURIs([]byte(garbled))
	require.NoError(t, err)
	assert.Equal(t, []string{"nfhls://audio/track.m3u8"}, mediaURIs)
	assert.Equal(t, []string{"nfhls://video/track.m3u8"}, variantURIs)
}

func TestExtractChildURIsUnparseable(t *testing.T) {
	_, _, err := ExtractChildURIs([]byte("complete nonsense"))
	assert.Error(t, err)
}

func TestAttributeValue(t *testing.T) {
	line := `#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",URI="mlhls://localhost/a.m3u8"`
	assert.Equal(t, "mlhls://localhost/a.m3u8", attributeValue(line, "URI"))
	assert.Equal(t, "aud", attributeValue(line, "GROUP-ID"))
	assert.Equal(t, "", attributeValue(line, "LANGUAGE"))
}
