package airplay

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"howett.net/plist"
)

// PlayRequest is the parsed body of a POST /play.
type PlayRequest struct {
	UUID                 string  `plist:"uuid"`
	ContentLocation      string  `plist:"Content-Location"`
	StartPositionSeconds float64 `plist:"Start-Position-Seconds"`
}

// ParsePlayRequest decodes a /play body. Modern clients send a binary
// plist with uuid, Content-Location and Start-Position-Seconds; older ones
// send text/parameters with Content-Location and Start-Position lines.
// Content-Location is mandatory either way.
func ParsePlayRequest(contentType string, body []byte) (*PlayRequest, error) {
	if strings.Contains(contentType, "text/parameters") {
		return parseTextParameters(body)
	}

	var req PlayRequest
	if _, err := plist.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decode play plist: %w", err)
	}
	if req.ContentLocation == "" {
		return nil, fmt.Errorf("play request has no Content-Location")
	}
	return &req, nil
}

// parseTextParameters handles the legacy "Key: value" line format.
func parseTextParameters(body []byte) (*PlayRequest, error) {
	req := &PlayRequest{}
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "Content-Location":
			req.ContentLocation = value
		case "Start-Position":
			if pos, err := strconv.ParseFloat(value, 64); err == nil {
				req.StartPositionSeconds = pos
			}
		}
	}

	if req.ContentLocation == "" {
		return nil, fmt.Errorf("play request has no Content-Location")
	}
	return req, nil
}
