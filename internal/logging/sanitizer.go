package logging

import (
	"net/url"
	"regexp"
)

const RedactedText = "[REDACTED]"

var (
	// Canvas tokens look like "1234~abc...", not JWTs, so any bearer value goes.
	bearerPattern = regexp.MustCompile(`(?i)Bearer\s+[^\s"',;]+`)

	// access_token=..., api_key=..., apiKey=..., token=...
	tokenParamPattern = regexp.MustCompile(`(?i)(access_token|api[_-]?key|apikey|token)=[^&\s"']+`)

	// JSON fields carrying keys
	jsonKeyPattern = regexp.MustCompile(`(?i)"(apiKey|api_key|apiKeySealed|access_token)"\s*:\s*"[^"]*"`)

	passwordPattern   = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeString removes credentials from free text before it is logged or
// put in a payload.
func SanitizeString(s string) string {
	if s == "" {
		return ""
	}
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = tokenParamPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = jsonKeyPattern.ReplaceAllString(s, `"${1}":"`+RedactedText+`"`)
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = connStringPattern.ReplaceAllString(s, "://"+RedactedText+"@"+RedactedText)
	return s
}

func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeURL drops user info and token query values.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return SanitizeString(raw)
	}
	if u.User != nil {
		u.User = url.User(RedactedText)
	}
	q := u.Query()
	changed := false
	for k := range q {
		switch k {
		case "access_token", "api_key", "apikey", "token":
			q.Set(k, RedactedText)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
