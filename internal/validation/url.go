package validation

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// SourceURLValidator checks addresses of recipe blogs and their feeds
// before anything is fetched from them.
type SourceURLValidator struct {
	// AllowLocalhost determines if localhost URLs are permitted
	AllowLocalhost bool
	// AllowPrivateIPs determines if private IP addresses are permitted
	AllowPrivateIPs bool
	MaxLength       int
}

// NewSourceURLValidator blocks localhost and private networks.
func NewSourceURLValidator() *SourceURLValidator {
	return &SourceURLValidator{MaxLength: 2048}
}

// NewPermissiveSourceURLValidator allows local development servers.
func NewPermissiveSourceURLValidator() *SourceURLValidator {
	return &SourceURLValidator{AllowLocalhost: true, AllowPrivateIPs: true, MaxLength: 2048}
}

// ValidateAndNormalize validates a source URL and returns the normalized
// version. A missing scheme defaults to https.
func (v *SourceURLValidator) ValidateAndNormalize(input string) (string, error) {
	input = strings.TrimSpace(input)

	if input == "" {
		return "", fmt.Errorf("URL cannot be empty")
	}
	if len(input) > v.MaxLength {
		return "", fmt.Errorf("URL too long (max %d characters)", v.MaxLength)
	}
	if strings.ContainsAny(input, "<>\"'`") {
		return "", fmt.Errorf("URL contains invalid characters")
	}

	if !strings.Contains(input, "://") {
		input = "https://" + input
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL must use http or https protocol")
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("URL must have a valid hostname")
	}
	if u.User != nil {
		return "", fmt.Errorf("credentials in URLs are not permitted")
	}

	if err := v.validateHost(u.Hostname()); err != nil {
		return "", err
	}
	if strings.Contains(u.Path, "..") {
		return "", fmt.Errorf("directory traversal patterns not allowed in URL path")
	}
	if q := strings.ToLower(u.RawQuery); strings.Contains(q, "<script") || strings.Contains(q, "javascript:") {
		return "", fmt.Errorf("suspicious query parameters detected")
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}

func (v *SourceURLValidator) validateHost(hostname string) error {
	hostname = strings.ToLower(hostname)

	if !v.AllowLocalhost && isLocalhost(hostname) {
		return fmt.Errorf("localhost URLs are not permitted")
	}

	if addr, err := netip.ParseAddr(hostname); err == nil {
		if addr.IsUnspecified() || addr == netip.AddrFrom4([4]byte{255, 255, 255, 255}) {
			return fmt.Errorf("suspicious hostname detected")
		}
		if !v.AllowPrivateIPs && isPrivateAddr(addr) {
			return fmt.Errorf("private IP addresses are not permitted")
		}
		return nil
	}

	if hostname == "localhost.com" || strings.ContainsAny(hostname, " _") || net.ParseIP(hostname) != nil {
		return fmt.Errorf("suspicious hostname detected")
	}
	return nil
}

func isLocalhost(hostname string) bool {
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return true
	}
	addr, err := netip.ParseAddr(hostname)
	return err == nil && addr.IsLoopback()
}

func isPrivateAddr(addr netip.Addr) bool {
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}
