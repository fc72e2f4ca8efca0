package canvas

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Credentials identify one end user against one Canvas instance.
// They are resolved per request and never cached beyond it.
type Credentials struct {
	BaseURL string
	APIKey  string
}

var ErrIncompleteCredentials = errors.New("canvas: base url and api key are required")

// NormalizeBaseURL cleans a user-entered instance URL: adds https:// when no
// scheme is present, repairs an escaped "\x3a//" or "%3A//" and drops trailing slashes
// and a trailing /api/v1.
func NormalizeBaseURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, `\x3a//`, "://")
	s = strings.ReplaceAll(s, `%3A//`, "://")
	s = strings.ReplaceAll(s, `%3a//`, "://")
	if !strings.Contains(s, "://") {
		s = "https://" + strings.TrimLeft(s, "/")
	}
	s = strings.TrimRight(s, "/")
	s = strings.TrimSuffix(s, "/api/v1")
	return strings.TrimRight(s, "/")
}

// Normalized returns a copy with a normalized base URL and trimmed key.
func (c Credentials) Normalized() Credentials {
	return Credentials{
		BaseURL: NormalizeBaseURL(c.BaseURL),
		APIKey:  strings.TrimSpace(c.APIKey),
	}
}

func (c Credentials) Validate() error {
	n := c.Normalized()
	if n.BaseURL == "" || n.APIKey == "" {
		return ErrIncompleteCredentials
	}
	u, err := url.Parse(n.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("canvas: invalid base url %q", n.BaseURL)
	}
	return nil
}

func (c Credentials) base() (*url.URL, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return url.Parse(NormalizeBaseURL(c.BaseURL))
}

// String never includes the API key.
func (c Credentials) String() string {
	return fmt.Sprintf("canvas(%s)", NormalizeBaseURL(c.BaseURL))
}
