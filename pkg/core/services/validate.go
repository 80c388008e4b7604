package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
)

const (
	MinCustomCodeLength = 3
	MaxCustomCodeLength = 20
)

var customCodeRegex = regexp.MustCompile(fmt.Sprintf(`^[a-zA-Z0-9]{%d,%d}$`, MinCustomCodeLength, MaxCustomCodeLength))

// Short codes live at the web root, so a custom code must not shadow a
// top-level route.
var reservedCodes = map[string]bool{
	"api":       true,
	"admin":     true,
	"auth":      true,
	"healthz":   true,
	"metrics":   true,
	"static":    true,
	"dashboard": true,
}

// ValidateURL checks that raw is an absolute http(s) URL whose host is not blocked.
// Every failure wraps domain.ErrInvalidURL.
func ValidateURL(raw string, blocked []string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: URL is required", domain.ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("%w: malformed URL", domain.ErrInvalidURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https URLs are allowed", domain.ErrInvalidURL)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", domain.ErrInvalidURL)
	}
	for _, b := range blocked {
		if host == strings.ToLower(b) {
			return fmt.Errorf("%w: domain not allowed", domain.ErrInvalidURL)
		}
	}
	return nil
}

// ValidateCustomCode checks the pattern and reserved words. Every failure wraps
// domain.ErrInvalidCustomCode.
func ValidateCustomCode(code string) error {
	if !customCodeRegex.MatchString(code) {
		return fmt.Errorf("%w: must be %d-%d alphanumeric characters",
			domain.ErrInvalidCustomCode, MinCustomCodeLength, MaxCustomCodeLength)
	}
	if reservedCodes[strings.ToLower(code)] {
		return fmt.Errorf("%w: %q is reserved", domain.ErrInvalidCustomCode, code)
	}
	return nil
}
