package reconciler_test

import (
	"filtersync/internal/reconciler"
	"filtersync/pkg/gateway"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrecedenceCounter_skipsUsed(t *testing.T) {
	c := reconciler.NewPrecedenceCounter(map[int]struct{}{1: {}, 3: {}})

	got := []int{c.Next(), c.Next(), c.Next(), c.Next()}
	require.Equal(t, []int{2, 4, 5, 6}, got)
}

func TestPrecedenceCounter_empty(t *testing.T) {
	c := reconciler.NewPrecedenceCounter(nil)
	require.Equal(t, 1, c.Next())
	require.Equal(t, 2, c.Next())
}

func TestPrecedenceCounter_doesNotAliasInput(t *testing.T) {
	used := map[int]struct{}{2: {}}
	c := reconciler.NewPrecedenceCounter(used)
	used[1] = struct{}{}

	require.Equal(t, 1, c.Next())
	require.Equal(t, 3, c.Next())
}

func TestTrafficExpression(t *testing.T) {
	require.Equal(t, "any(dns.domains[*] in $l1)",
		reconciler.TrafficExpression([]gateway.List{{ID: "l1"}}))
	require.Equal(t, "any(dns.domains[*] in $l1) or any(dns.domains[*] in $l2)",
		reconciler.TrafficExpression([]gateway.List{{ID: "l1"}, {ID: "l2"}}))
	require.Empty(t, reconciler.TrafficExpression(nil))
}
