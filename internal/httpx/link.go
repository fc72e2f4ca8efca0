package httpx

import (
	"net/http"
	"net/url"
	"strings"
)

// NextLink returns the target of the rel="next" entry of an RFC 8288 Link
// header, resolved against base. The pointer is treated as opaque: only the
// URL is extracted, its query is not interpreted. Returns "" when absent.
func NextLink(h http.Header, base *url.URL) string {
	for _, v := range h.Values("Link") {
		for _, part := range splitLinks(v) {
			target, params, ok := parseLink(part)
			if !ok || !hasRel(params, "next") {
				continue
			}
			if base == nil {
				return target
			}
			ref, err := url.Parse(target)
			if err != nil {
				return ""
			}
			return base.ResolveReference(ref).String()
		}
	}
	return ""
}

// splitLinks splits a header value on commas that are outside <...>.
func splitLinks(v string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range v {
		switch r {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, v[start:i])
				start = i + 1
			}
		}
	}
	return append(out, v[start:])
}

func parseLink(s string) (string, []string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") {
		return "", nil, false
	}
	end := strings.Index(s, ">")
	if end < 0 {
		return "", nil, false
	}
	target := strings.TrimSpace(s[1:end])
	return target, strings.Split(s[end+1:], ";"), target != ""
}

func hasRel(params []string, rel string) bool {
	for _, p := range params {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "rel") {
			continue
		}
		for _, r := range strings.Fields(strings.Trim(strings.TrimSpace(v), `"`)) {
			if strings.EqualFold(r, rel) {
				return true
			}
		}
	}
	return false
}
