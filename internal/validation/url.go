// Package validation checks user- and operator-supplied URLs.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// URLValidationError names the field and the rule a URL broke.
type URLValidationError struct {
	Field   string
	Message string
	URL     string
}

func (e URLValidationError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, truncate(e.URL, 80))
}

// dataImage matches the header of an inline base64 image.
var dataImage = regexp.MustCompile(`^data:image/[a-z0-9.+-]+;base64,`)

// ValidateURL checks that raw is an absolute http(s) URL with a host.
// An empty raw is accepted; callers decide whether the field is required.
func ValidateURL(raw, field string, requireHTTPS bool) error {
	if raw == "" {
		return nil
	}
	fail := func(msg string) error {
		return URLValidationError{Field: field, Message: msg, URL: raw}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fail("invalid URL format")
	}
	scheme := strings.ToLower(parsed.Scheme)
	switch {
	case scheme == "":
		return fail("URL must include a scheme (http:// or https://)")
	case scheme != "http" && scheme != "https":
		return fail("URL scheme must be http or https")
	case parsed.Host == "":
		return fail("URL must include a host")
	case requireHTTPS && scheme != "https":
		return fail("URL must use HTTPS")
	}
	return nil
}

// ValidateWebhookURL checks an outbound webhook target. Webhook URLs carry
// their credentials in the path, so a bare host is rejected.
func ValidateWebhookURL(raw, field string, requireHTTPS bool) error {
	if err := ValidateURL(raw, field, requireHTTPS); err != nil || raw == "" {
		return err
	}
	parsed, _ := url.Parse(raw)
	if strings.Trim(parsed.Path, "/") == "" {
		return URLValidationError{Field: field, Message: "webhook URL must include a path", URL: raw}
	}
	if parsed.Fragment != "" {
		return URLValidationError{Field: field, Message: "webhook URL must not contain a fragment", URL: raw}
	}
	return nil
}

// ValidateImageSource accepts an http(s) image URL or an inline
// data:image/...;base64 URI.
func ValidateImageSource(raw, field string) error {
	if raw == "" {
		return URLValidationError{Field: field, Message: "image is required", URL: raw}
	}
	if strings.HasPrefix(raw, "data:") {
		if !dataImage.MatchString(raw) {
			return URLValidationError{Field: field, Message: "data URI must be a base64 image", URL: raw}
		}
		return nil
	}
	return ValidateURL(raw, field, false)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
