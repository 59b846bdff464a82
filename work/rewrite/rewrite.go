package rewrite

import (
	"strings"

	"github.com/grafana/regexp"
)

// Origin identifies which casting app a play attempt came from, derived
// once per session from the scheme of the primary URI. The origin decides
// which textual rewrite rules apply to every document fetched for that
// session.
type Origin int

const (
	OriginYoutube Origin = iota
	OriginNetflix
	OriginUnknown
)

// String returns the origin name used in logs and metrics labels.
func (o Origin) String() string {
	switch o {
	case OriginYoutube:
		return "youtube"
	case OriginNetflix:
		return "netflix"
	default:
		return "unknown"
	}
}

const (
	// MlhlsScheme marks Youtube app-restricted HLS locations.
	MlhlsScheme = "mlhls://"

	// NfhlsScheme marks Netflix app-restricted HLS locations.
	NfhlsScheme = "nfhls://"

	// HTTPScheme replaces the restricted schemes in rewritten documents.
	HTTPScheme = "http://"

	masterM3U8 = "master.m3u8"
	indexM3U8  = "index.m3u8"
)

// The restricted schemes and placeholder hosts are matched with regexps so
// one replacement pass covers both apps and both host spellings, exactly
// one alternative winning per occurrence.
var (
	schemeRe    = regexp.MustCompile(`mlhls://|nfhls://`)
	hostRe      = regexp.MustCompile(`localhost|127\.0\.0\.1`)
	condensedRe = regexp.MustCompile(`#YT-EXT-CONDENSED-URL:BASE-URI="(.*)",PARAMS=.*PREFIX="(.*)"`)
)

// Classify matches uri against the known restricted scheme prefixes.
// Anything without a recognized prefix is OriginUnknown, which callers
// treat as "not a casting URL".
func Classify(uri string) Origin {
	// Youtube
	if strings.HasPrefix(uri, MlhlsScheme) {
		return OriginYoutube
	}

	// Netflix
	if strings.HasPrefix(uri, NfhlsScheme) {
		return OriginNetflix
	}

	return OriginUnknown
}

// IsPrimaryManifestURI reports whether uri names a top-level playlist
// (master.m3u8 or index.m3u8 anywhere in the URI).
func IsPrimaryManifestURI(uri string) bool {
	if strings.Contains(uri, masterM3U8) {
		return true
	}
	if strings.Contains(uri, indexM3U8) {
		return true
	}

	return false
}

// PrimaryURI rewrites the session's root URI into the locally served form:
// the restricted scheme becomes http:// and the placeholder host becomes
// hostPort. Path and query are untouched.
func PrimaryURI(uri string, hostPort string) string {
	s := schemeRe.ReplaceAllString(uri, HTTPScheme)
	return hostRe.ReplaceAllString(s, hostPort)
}

// PrimaryBody rewrites a top-level manifest body so every restricted URI in
// it points at the local media server. Youtube manifests carry full
// scheme://host URIs, so scheme and host are replaced separately; Netflix
// manifests are host-relative after the scheme token, so the scheme alone
// becomes http://hostPort/ (trailing slash intended). Unknown origins pass
// through unchanged.
func PrimaryBody(origin Origin, body string, hostPort string) string {
	switch origin {
	case OriginYoutube:
		s := strings.ReplaceAll(body, MlhlsScheme, HTTPScheme)
		return hostRe.ReplaceAllString(s, hostPort)
	case OriginNetflix:
		return strings.ReplaceAll(body, NfhlsScheme, HTTPScheme+hostPort+"/")
	default:
	}
	return body
}

// SecondaryBody applies the Youtube condensed-URL patch to a child manifest.
// If the body carries a #YT-EXT-CONDENSED-URL directive with non-empty
// BASE-URI and PREFIX captures, every line starting with the prefix is
// re-expanded to base/prefix. The pass keys off the text alone, not the
// session origin, and is a no-op when the directive is absent.
func SecondaryBody(body string) string {
	var base, prefix string
	if groups := condensedRe.FindStringSubmatch(body); len(groups) > 2 {
		base = groups[1]
		prefix = groups[2]
	}

	if base != "" && prefix != "" {
		body = strings.ReplaceAll(body, "\n"+prefix, "\n"+base+"/"+prefix)
	}

	return body
}

// LocalPath derives the cache key for uri by stripping the restricted
// scheme and placeholder host tokens. Both known origins get a guaranteed
// leading slash (Netflix URIs are host-relative and usually lack it); an
// unknown origin returns uri unchanged.
func LocalPath(origin Origin, uri string) string {
	switch origin {
	case OriginYoutube, OriginNetflix:
		s := strings.ReplaceAll(uri, MlhlsScheme, "")
		s = strings.ReplaceAll(s, NfhlsScheme, "")
		s = hostRe.ReplaceAllString(s, "")
		if s == "" {
			return ""
		}
		if !strings.HasPrefix(s, "/") {
			s = "/" + s
		}
		return s
	default:
	}
	return uri
}
