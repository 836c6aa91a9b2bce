package urlutil

import (
	"errors"
	"net/url"
	"path"
	"sort"
	"strings"
)

var ErrUnsupportedURL = errors.New("unsupported url")

var staticExtensions = map[string]struct{}{
	".css":   {},
	".gif":   {},
	".ico":   {},
	".jpeg":  {},
	".jpg":   {},
	".js":    {},
	".mp3":   {},
	".mp4":   {},
	".pdf":   {},
	".png":   {},
	".svg":   {},
	".ttf":   {},
	".woff":  {},
	".woff2": {},
	".zip":   {},
}

// trackingParams are dropped by Normalize. Job-selecting parameters such as
// LinkedIn's currentJobId or Indeed's jk/vjk are kept.
var trackingParams = map[string]struct{}{
	"gclid":      {},
	"fbclid":     {},
	"ref":        {},
	"refid":      {},
	"trk":        {},
	"trackingid": {},
	"source":     {},
}

// NormalizeHost lowercases a hostname and strips one leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// Hostname returns the normalized hostname of raw, or "" when raw does not parse.
func Hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return NormalizeHost(u.Hostname())
}

// Normalize canonicalizes a page URL for storage and display: https default,
// no fragment, lowercased host without "www.", cleaned path, tracking query
// parameters removed and the rest sorted.
func Normalize(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Fragment = ""
	u.Host = NormalizeHost(u.Host)
	u.Path = normalizePath(u.Path)
	u.RawQuery = normalizeQuery(u.RawQuery)
	return u.String(), u.Hostname(), nil
}

// ValidatePageURL accepts absolute http(s) URLs that point at a document
// rather than a static asset.
func ValidatePageURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrUnsupportedURL
	}
	if u.Hostname() == "" {
		return "", ErrUnsupportedURL
	}
	if isStaticAssetPath(u.Path) {
		return "", ErrUnsupportedURL
	}
	return u.String(), nil
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	clean := path.Clean(p)
	if clean == "." {
		return "/"
	}
	return clean
}

func normalizeQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	for key := range values {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") {
			delete(values, key)
			continue
		}
		if _, ok := trackingParams[lk]; ok {
			delete(values, key)
		}
	}
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	normalized := url.Values{}
	for _, k := range keys {
		normalized[k] = values[k]
	}
	return normalized.Encode()
}

func isStaticAssetPath(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	_, ok := staticExtensions[ext]
	return ok
}
