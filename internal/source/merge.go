package source

import (
	"filtersync/pkg/domain"
	"strings"
)

// MergeBlocks concatenates the normalized sources in order and keeps the
// first occurrence of each domain.
func MergeBlocks(sources ...[]domain.Domain) []domain.Domain {
	seen := make(map[domain.Domain]struct{})
	var out []domain.Domain
	for _, src := range sources {
		for _, d := range src {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}

	return out
}

// MergeRoutes keeps one route per domain. Sources are scanned in order and the
// first ip seen for a domain wins; later routes for it are ignored.
func MergeRoutes(sources ...[]domain.BypassRoute) []domain.BypassRoute {
	seen := make(map[domain.Domain]struct{})
	var out []domain.BypassRoute
	for _, src := range sources {
		for _, r := range src {
			if _, ok := seen[r.Domain]; ok {
				continue
			}
			seen[r.Domain] = struct{}{}
			out = append(out, r)
		}
	}

	return out
}

// GroupByIP regroups routes by target ip. Groups are ordered by the first
// appearance of their ip and keep the route order of their domains.
func GroupByIP(routes []domain.BypassRoute) []domain.RouteGroup {
	index := make(map[string]int)
	var out []domain.RouteGroup
	for _, r := range routes {
		i, ok := index[r.IP]
		if !ok {
			i = len(out)
			index[r.IP] = i
			out = append(out, domain.RouteGroup{IP: r.IP})
		}
		out[i].Domains = append(out[i].Domains, r.Domain)
	}

	return out
}

// ParseExclusions canonicalizes configured exclusion values. Values are
// lowercased and stripped of a leading "*." and "www."; blank values and
// duplicates are skipped.
func ParseExclusions(values []string) []domain.Domain {
	var out []domain.Domain
	seen := make(map[domain.Domain]struct{})
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		v = strings.TrimPrefix(v, "*.")
		v = strings.TrimPrefix(v, "www.")
		v = strings.TrimSuffix(v, ".")
		if v == "" {
			continue
		}
		d := domain.Domain(v)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}

	return out
}

// Exclude returns domains without the excluded ones, order preserved.
func Exclude(domains, excluded []domain.Domain) []domain.Domain {
	if len(excluded) == 0 {
		return domains
	}

	skip := make(map[domain.Domain]struct{}, len(excluded))
	for _, d := range excluded {
		skip[d] = struct{}{}
	}

	out := make([]domain.Domain, 0, len(domains))
	for _, d := range domains {
		if _, ok := skip[d]; !ok {
			out = append(out, d)
		}
	}

	return out
}
