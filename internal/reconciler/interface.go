// Package reconciler makes a provider's remote filtering configuration match
// a desired state. Gateway providers are reconciled by full replacement under
// a per-run ownership tag; profile providers by diffing existing entries.
package reconciler

import (
	"context"
	"filtersync/pkg/domain"
)

// Reconciler applies a desired state to one provider.
//
//go:generate mockgen -package mockreconciler -source=interface.go -destination=mock/mockreconciler.go *
type Reconciler interface {
	// Reconcile applies desired. tag is generated once per run and stamped on
	// every resource the run creates.
	Reconcile(ctx context.Context, tag domain.OwnershipTag, desired domain.DesiredState) (Report, error)
}

// Report counts what a reconciliation changed remotely.
type Report struct {
	ListsRemoved    int `json:"listsRemoved" yaml:"listsRemoved"`
	ListsCreated    int `json:"listsCreated" yaml:"listsCreated"`
	RulesRemoved    int `json:"rulesRemoved" yaml:"rulesRemoved"`
	RulesCreated    int `json:"rulesCreated" yaml:"rulesCreated"`
	DeniesCreated   int `json:"deniesCreated" yaml:"deniesCreated"`
	DeniesRemoved   int `json:"deniesRemoved" yaml:"deniesRemoved"`
	RewritesCreated int `json:"rewritesCreated" yaml:"rewritesCreated"`
	RewritesRemoved int `json:"rewritesRemoved" yaml:"rewritesRemoved"`
	// Failures counts items that were attempted and abandoned.
	Failures int `json:"failures" yaml:"failures"`
}
