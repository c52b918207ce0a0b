package source_test

import (
	"filtersync/internal/source"
	"filtersync/pkg/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeBlocks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []domain.Domain
	}{
		{name: "strips prefix and www", in: "0.0.0.0 www.example.com", want: []domain.Domain{"example.com"}},
		{name: "localhost discarded", in: "127.0.0.1 localhost"},
		{name: "ip6 localhost discarded", in: "::1 ip6-localhost"},
		{name: "all prefixes", in: "0.0.0.0 a.com\n127.0.0.1 b.com\n::1 c.com", want: []domain.Domain{"a.com", "b.com", "c.com"}},
		{name: "comments and blanks", in: "# header\n\n   \n0.0.0.0 a.com\n#0.0.0.0 b.com", want: []domain.Domain{"a.com"}},
		{name: "crlf", in: "0.0.0.0 a.com\r\n0.0.0.0 b.com\r\n", want: []domain.Domain{"a.com", "b.com"}},
		{name: "lowercased", in: "0.0.0.0 WWW.Ads.Example.COM", want: []domain.Domain{"ads.example.com"}},
		{name: "inline comment dropped", in: "0.0.0.0 tracker.net # analytics", want: []domain.Domain{"tracker.net"}},
		{name: "trailing dot", in: "0.0.0.0 a.com.", want: []domain.Domain{"a.com"}},
		{name: "idna", in: "0.0.0.0 bücher.de", want: []domain.Domain{"xn--bcher-kva.de"}},
		{name: "no block prefix", in: "1.2.3.4 a.com\na.com"},
		{name: "ip as host", in: "0.0.0.0 0.0.0.0"},
		{name: "empty label", in: "0.0.0.0 a..com"},
		{name: "order preserved with duplicates", in: "0.0.0.0 b.com\n0.0.0.0 a.com\n0.0.0.0 b.com", want: []domain.Domain{"b.com", "a.com", "b.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, source.NormalizeBlocks(tt.in))
		})
	}
}

func TestNormalizeRoutes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []domain.BypassRoute
	}{
		{name: "simple", in: "1.1.1.1 a.com", want: []domain.BypassRoute{{IP: "1.1.1.1", Domain: "a.com"}}},
		{name: "block lines excluded", in: "0.0.0.0 blocked.com\n127.0.0.1 x.com\n10.0.0.1 b.com", want: []domain.BypassRoute{{IP: "10.0.0.1", Domain: "b.com"}}},
		{name: "www stripped", in: "10.0.0.1 www.B.com", want: []domain.BypassRoute{{IP: "10.0.0.1", Domain: "b.com"}}},
		{name: "whitespace run", in: "3.3.3.3 \t  d.com   # comment", want: []domain.BypassRoute{{IP: "3.3.3.3", Domain: "d.com"}}},
		{name: "ipv6 target", in: "2001:db8::1 v6.com", want: []domain.BypassRoute{{IP: "2001:db8::1", Domain: "v6.com"}}},
		{name: "bad ip", in: "notanip c.com"},
		{name: "missing host", in: "2.2.2.2"},
		{name: "comment as host", in: "2.2.2.2 #c.com"},
		{name: "comments skipped", in: "# 1.1.1.1 a.com\n\n1.1.1.1 a.com", want: []domain.BypassRoute{{IP: "1.1.1.1", Domain: "a.com"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, source.NormalizeRoutes(tt.in))
		})
	}
}

func TestCanonicalHost(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Domain
		ok   bool
	}{
		{in: "Example.COM", want: "example.com", ok: true},
		{in: " www.example.com. ", want: "example.com", ok: true},
		{in: "ПРИМЕР.рф", want: "xn--e1afmkfd.xn--p1ai", ok: true},
		{in: "a..b", ok: false},
		{in: "", ok: false},
		{in: "192.168.0.1", ok: false},
		{in: "::1", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := source.CanonicalHost(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestIsBlockLine(t *testing.T) {
	require.True(t, source.IsBlockLine("0.0.0.0 a.com"))
	require.True(t, source.IsBlockLine("::1 a.com"))
	require.False(t, source.IsBlockLine("0.0.0.0"))
	require.False(t, source.IsBlockLine("1.1.1.1 a.com"))
}
