package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var invoiceNumberRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]*$`)

// ValidateAbsoluteURL checks that the value parses as an absolute http(s) URL
func ValidateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("URL must be absolute: %s", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host: %s", raw)
	}
	return nil
}

// ValidateInvoiceNumber checks an invoice number is non-empty and
// free of path separators and control characters
func ValidateInvoiceNumber(n string) error {
	if strings.TrimSpace(n) == "" {
		return fmt.Errorf("invoice number is required")
	}
	if !invoiceNumberRegex.MatchString(n) {
		return fmt.Errorf("invalid invoice number: %s", n)
	}
	return nil
}

// SanitizeString strips control characters
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}
