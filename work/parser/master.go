package parser

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/grafov/m3u8"
)

// ExtractChildURIs parses a master playlist and returns the URIs of the
// sub-resources it references: media alternates (EXT-X-MEDIA renditions)
// first, then stream variants (EXT-X-STREAM-INF entries), each preserving
// document order. The URIs come back exactly as written in the playlist,
// still carrying their restricted scheme.
//
// Parsing is attempted with grafov/m3u8 first; if that fails, a line
// scanner fallback extracts what it can. An error is returned only when
// both passes fail, and callers are expected to treat it as "no children
// discovered" rather than a fatal condition.
func ExtractChildURIs(data []byte) (mediaURIs []string, variantURIs []string, err error) {
	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(bytes.NewReader(data)), true)
	if err == nil && listType == m3u8.MASTER {
		master := playlist.(*m3u8.MasterPlaylist)

		// grafov attaches the rendition set to every variant; collect each
		// alternate URI once, in the order first seen
		seen := make(map[string]bool)
		for _, variant := range master.Variants {
			if variant == nil {
				continue
			}
			for _, alt := range variant.Alternatives {
				if alt == nil || alt.URI == "" || seen[alt.URI] {
					continue
				}
				seen[alt.URI] = true
				mediaURIs = append(mediaURIs, alt.URI)
			}
		}

		for _, variant := range master.Variants {
			if variant == nil || variant.URI == "" {
				continue
			}
			variantURIs = append(variantURIs, variant.URI)
		}

		return mediaURIs, variantURIs, nil
	}

	if err == nil {
		// Decoded fine but it's a media playlist: no children to extract.
		return nil, nil, nil
	}

	// Fallback to line scanning if grafov fails
	mediaURIs, variantURIs = scanChildURIs(data)
	if len(mediaURIs) == 0 && len(variantURIs) == 0 {
		return nil, nil, err
	}
	return mediaURIs, variantURIs, nil
}

// scanChildURIs is the fallback extractor: EXT-X-MEDIA lines contribute
// their URI attribute, and the first non-comment line after each
// EXT-X-STREAM-INF tag is taken as a variant URI.
func scanChildURIs(data []byte) (mediaURIs []string, variantURIs []string) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	expectVariant := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			if uri := attributeValue(line, "URI"); uri != "" {
				mediaURIs = append(mediaURIs, uri)
			}
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			expectVariant = true
		case strings.HasPrefix(line, "#"):
			// other tags don't reset the pending variant flag
		default:
			if expectVariant {
				variantURIs = append(variantURIs, line)
				expectVariant = false
			}
		}
	}

	return mediaURIs, variantURIs
}

// attributeValue extracts a quoted attribute value (ATTR="...") from an HLS
// tag line, returning "" when the attribute is missing.
func attributeValue(line string, attr string) string {
	marker := attr + "=\""
	start := strings.Index(line, marker)
	if start < 0 {
		return ""
	}
	rest := line[start+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}
