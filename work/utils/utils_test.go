package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aircast/work/config"
)

func TestObfuscateURL(t *testing.T) {
	assert.Equal(t, "https://example.com/***?***", ObfuscateURL("https://example.com/path/file.m3u8?token=secret"))
	assert.Equal(t, "mlhls://localhost/***", ObfuscateURL("mlhls://localhost/master.m3u8"))
	assert.Equal(t, "http://example.com", ObfuscateURL("http://example.com"))
	assert.Equal(t, "", ObfuscateURL(""))
}

func TestLogURL(t *testing.T) {
	url := "https://example.com/secret.m3u8"

	cfg := &config.Config{ObfuscateUrls: false}
	assert.Equal(t, url, LogURL(cfg, url))

	cfg.ObfuscateUrls = true
	assert.Equal(t, "https://example.com/***", LogURL(cfg, url))
}

func TestShortSessionID(t *testing.T) {
	assert.Equal(t, "F0A230C8", ShortSessionID("F0A230C8-35D3-4D46-B9E4-E868B7B23D81"))
	assert.Equal(t, "plain", ShortSessionID("plain"))
	assert.Equal(t, "", ShortSessionID(""))
}
