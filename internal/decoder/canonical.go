package decoder

import (
	"net/url"
	"strings"
)

// Canonicalize normalizes an article URL for deduplication: scheme and host
// are lowercased, the fragment and tracking parameters are removed and a
// trailing slash is trimmed. A URL that does not parse is returned as is,
// since its path and query may be case-sensitive.
func Canonicalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			lk := strings.ToLower(k)
			if strings.HasPrefix(lk, "utm_") || lk == "fbclid" || lk == "gclid" {
				q.Del(k)
			}
		}
		u.RawQuery = q.Encode()
	}

	return strings.TrimRight(u.String(), "/")
}
