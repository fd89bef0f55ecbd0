package sanitizer

import (
	"net/url"
	"strings"
)

// SanitizeURL returns input as an absolute https URL (http is kept when
// given explicitly) with a lowercased host and utm_* parameters removed.
// Path and query values keep their case since payment links are often
// signed. Unparseable input yields "".
func SanitizeURL(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "https://"):
		s = "https://" + s[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		s = "http://" + s[len("http://"):]
	default:
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}

	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}
