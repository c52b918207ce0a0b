package source

import (
	"filtersync/pkg/domain"
	"net/netip"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// blockPrefixes mark hosts-file lines that point a name at a null route.
var blockPrefixes = []string{"0.0.0.0 ", "127.0.0.1 ", "::1 "} //nolint: gochecknoglobals

// localhostNames are loopback self-references shipped in most hosts files.
var localhostNames = []string{"localhost", "ip6-localhost"} //nolint: gochecknoglobals

var lineBreak = regexp.MustCompile(`\r?\n`)

// lines splits raw list text and returns the trimmed, lowercased lines that
// are neither empty nor comments.
func lines(text string) []string {
	var out []string
	for _, line := range lineBreak.Split(text, -1) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.ToLower(line))
	}

	return out
}

// IsBlockLine reports whether a lowercased line is a block entry.
func IsBlockLine(line string) bool {
	for _, p := range blockPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}

	return false
}

func isLocalhost(line string) bool {
	for _, name := range localhostNames {
		if strings.HasSuffix(line, name) {
			return true
		}
	}

	return false
}

func stripBlockPrefix(line string) string {
	for _, p := range blockPrefixes {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(line[len(p):])
		}
	}

	return line
}

// CanonicalHost returns the canonical form of a hostname: lowercase, ASCII
// (IDNA), without a trailing dot and without a leading "www." label. The
// second return value is false when raw is not a valid DNS name or is an IP
// address.
func CanonicalHost(raw string) (domain.Domain, bool) {
	host := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), ".")
	if host == "" {
		return "", false
	}

	if !isASCII(host) {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", false
		}
		host = ascii
	}

	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", false
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return "", false
	}
	if _, ok := dns.IsDomainName(host); !ok {
		return "", false
	}

	return domain.Domain(host), true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}

	return true
}

// NormalizeBlocks parses hosts-file text into the domains it blocks, in input
// order. Lines that do not start with a null route prefix and loopback
// self-references are discarded; inline comments are dropped.
func NormalizeBlocks(text string) []domain.Domain {
	var out []domain.Domain
	for _, line := range lines(text) {
		if !IsBlockLine(line) || isLocalhost(line) {
			continue
		}

		fields := strings.Fields(stripBlockPrefix(line))
		if len(fields) == 0 {
			continue
		}
		if d, ok := CanonicalHost(fields[0]); ok {
			out = append(out, d)
		}
	}

	return out
}

// NormalizeRoutes parses "ip hostname" lines into bypass routes, in input
// order. Block entries, lines without a hostname and lines whose ip does not
// parse are discarded.
func NormalizeRoutes(text string) []domain.BypassRoute {
	var out []domain.BypassRoute
	for _, line := range lines(text) {
		if IsBlockLine(line) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 || strings.HasPrefix(fields[1], "#") {
			continue
		}
		ip, err := netip.ParseAddr(fields[0])
		if err != nil {
			continue
		}
		d, ok := CanonicalHost(fields[1])
		if !ok {
			continue
		}
		out = append(out, domain.BypassRoute{IP: ip.String(), Domain: d})
	}

	return out
}
