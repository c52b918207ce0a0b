package reconciler

import (
	"filtersync/pkg/gateway"
	"strings"
)

// TrafficExpression matches DNS queries for a domain held by any of lists.
func TrafficExpression(lists []gateway.List) string {
	parts := make([]string, 0, len(lists))
	for _, l := range lists {
		parts = append(parts, "any(dns.domains[*] in $"+l.ID+")")
	}

	return strings.Join(parts, " or ")
}
