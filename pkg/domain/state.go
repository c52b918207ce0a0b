package domain

import (
	"github.com/google/uuid"
)

// Domain is a canonical hostname: lowercase, without a trailing dot and
// without a leading "www." label.
type Domain string

// BypassRoute is a desired rewrite of Domain to IP.
type BypassRoute struct {
	IP     string `yaml:"ip"`
	Domain Domain `yaml:"domain"`
}

// RouteGroup holds every domain routed to the same IP, in source order.
type RouteGroup struct {
	IP      string   `yaml:"ip"`
	Domains []Domain `yaml:"domains"`
}

// DesiredState is the block/override configuration computed from one fetch of
// all configured sources.
type DesiredState struct {
	// BlockConfigured is true when at least one block source was configured,
	// even if the sources produced no domains.
	BlockConfigured bool `yaml:"blockConfigured"`
	// OverrideConfigured is true when at least one override source was configured.
	OverrideConfigured bool `yaml:"overrideConfigured"`
	// Blocks is the deduplicated set of domains to block, first occurrence order.
	Blocks []Domain `yaml:"blocks"`
	// Routes holds one route per domain; the IP of the first source wins.
	Routes []BypassRoute `yaml:"routes"`
	// Excluded lists domains that must never be blocked. They are already
	// removed from Blocks.
	Excluded []Domain `yaml:"excluded,omitempty"`
}

// RouteMap flattens Routes into a domain to IP map.
func (s DesiredState) RouteMap() map[Domain]string {
	out := make(map[Domain]string, len(s.Routes))
	for _, r := range s.Routes {
		if _, ok := out[r.Domain]; !ok {
			out[r.Domain] = r.IP
		}
	}

	return out
}

// OwnershipTag identifies the remote resources created by one run. Resources
// carrying any other tag are considered stale by the gateway reconciler.
type OwnershipTag string

// NewOwnershipTag returns a fresh, time ordered tag. It is called once per run.
func NewOwnershipTag() OwnershipTag {
	return OwnershipTag("session_" + uuid.Must(uuid.NewV7()).String())
}
