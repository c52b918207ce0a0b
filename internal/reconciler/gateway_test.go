package reconciler_test

import (
	"context"
	"filtersync/internal/reconciler"
	"filtersync/pkg/domain"
	"filtersync/pkg/gateway"
	mockgateway "filtersync/pkg/gateway/mock"
	"filtersync/pkg/serrors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const currentTag = domain.OwnershipTag("session_current")

// listIDs names created lists after their request name.
func listIDs(_ context.Context, req gateway.CreateListRequest) (gateway.List, error) {
	id := strings.ReplaceAll(req.Name, " ", "-")

	return gateway.List{ID: id, Name: req.Name, Description: req.Description, Count: len(req.Items)}, nil
}

func values(items []gateway.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Value)
	}

	return out
}

func TestGateway_Reconcile_fullRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockgateway.NewMockClient(ctrl)
	g := reconciler.NewGateway(client, reconciler.GatewayOptions{ListCap: 2})

	client.EXPECT().Rules(gomock.Any()).Return([]gateway.Rule{
		{ID: "r-old", Name: "Rules set by script", Description: "session_old", Precedence: 1},
		{ID: "r-user", Name: "My own rule", Description: "session_old", Precedence: 3},
		{ID: "r-cur", Name: "Rules set by script override to IP -> 9.9.9.9", Description: string(currentTag), Precedence: 5},
	}, nil)
	client.EXPECT().DeleteRule(gomock.Any(), "r-old").Return(nil)

	client.EXPECT().Lists(gomock.Any()).Return([]gateway.List{
		{ID: "l-old-block", Name: "Blocked websites by script 1", Description: "session_old"},
		{ID: "l-old-ovr", Name: "Override websites by script to IP 1.1.1.1 1", Description: "session_old"},
		{ID: "l-cur", Name: "Blocked websites by script 1", Description: string(currentTag)},
		{ID: "l-user", Name: "Family", Description: "mine"},
	}, nil)
	client.EXPECT().DeleteList(gomock.Any(), "l-old-block").Return(nil)
	client.EXPECT().DeleteList(gomock.Any(), "l-old-ovr").Return(nil)

	var created []gateway.CreateListRequest
	client.EXPECT().CreateList(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req gateway.CreateListRequest) (gateway.List, error) {
			created = append(created, req)

			return listIDs(ctx, req)
		}).Times(4)

	client.EXPECT().CreateRule(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req gateway.CreateRuleRequest) (gateway.Rule, error) {
			require.Equal(t, "Rules set by script", req.Name)
			require.Equal(t, gateway.ActionBlock, req.Action)
			require.Equal(t, []string{"dns"}, req.Filters)
			require.True(t, req.Enabled)
			require.Equal(t, string(currentTag), req.Description)
			require.Zero(t, req.Precedence)
			require.Equal(t,
				"any(dns.domains[*] in $Blocked-websites-by-script-1) or any(dns.domains[*] in $Blocked-websites-by-script-2)",
				req.Traffic)

			return gateway.Rule{ID: "r-block", Precedence: 2}, nil
		})

	var mu sync.Mutex
	overrideRules := map[string]gateway.CreateRuleRequest{}
	client.EXPECT().CreateRule(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req gateway.CreateRuleRequest) (gateway.Rule, error) {
			mu.Lock()
			defer mu.Unlock()
			overrideRules[req.RuleSettings.OverrideIPs[0]] = req

			return gateway.Rule{ID: "r-" + req.RuleSettings.OverrideIPs[0], Precedence: req.Precedence}, nil
		}).Times(2)

	report, err := g.Reconcile(context.Background(), currentTag, domain.DesiredState{
		BlockConfigured:    true,
		OverrideConfigured: true,
		Blocks:             []domain.Domain{"x.com", "y.com", "z.com"},
		Routes: []domain.BypassRoute{
			{IP: "1.1.1.1", Domain: "a.com"},
			{IP: "2.2.2.2", Domain: "b.com"},
			{IP: "1.1.1.1", Domain: "c.com"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, reconciler.Report{RulesRemoved: 1, ListsRemoved: 2, ListsCreated: 4, RulesCreated: 3}, report)

	require.Len(t, created, 4)
	require.Equal(t, "Blocked websites by script 1", created[0].Name)
	require.Equal(t, []string{"x.com", "y.com"}, values(created[0].Items))
	require.Equal(t, "Blocked websites by script 2", created[1].Name)
	require.Equal(t, []string{"z.com"}, values(created[1].Items))
	require.Equal(t, "Override websites by script to IP 1.1.1.1 1", created[2].Name)
	require.Equal(t, []string{"a.com", "c.com"}, values(created[2].Items))
	require.Equal(t, "Override websites by script to IP 2.2.2.2 1", created[3].Name)
	require.Equal(t, []string{"b.com"}, values(created[3].Items))
	for _, req := range created {
		require.Equal(t, gateway.ListTypeDomain, req.Type)
		require.Equal(t, string(currentTag), req.Description)
	}

	require.Len(t, overrideRules, 2)
	first := overrideRules["1.1.1.1"]
	require.Equal(t, "Rules set by script override to IP -> 1.1.1.1", first.Name)
	require.Equal(t, gateway.ActionOverride, first.Action)
	require.Equal(t, "any(dns.domains[*] in $Override-websites-by-script-to-IP-1.1.1.1-1)", first.Traffic)
	// 2 is held by the new block rule, 3 and 5 by surviving rules.
	require.Equal(t, 1, first.Precedence)
	require.Equal(t, 4, overrideRules["2.2.2.2"].Precedence)
}

func TestGateway_Reconcile_failedRemovalKeepsPrecedence(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockgateway.NewMockClient(ctrl)
	g := reconciler.NewGateway(client, reconciler.GatewayOptions{})

	client.EXPECT().Rules(gomock.Any()).Return([]gateway.Rule{
		{ID: "r-stuck", Name: "Rules set by script", Description: "session_old", Precedence: 1},
		{ID: "r-gone", Name: "Rules set by script override to IP -> 3.3.3.3", Description: "session_old", Precedence: 2},
	}, nil)
	client.EXPECT().DeleteRule(gomock.Any(), "r-stuck").Return(serrors.FromStatus(http.StatusInternalServerError, "oops"))
	client.EXPECT().DeleteRule(gomock.Any(), "r-gone").Return(nil)
	client.EXPECT().Lists(gomock.Any()).Return(nil, nil)

	client.EXPECT().CreateList(gomock.Any(), gomock.Any()).DoAndReturn(listIDs)
	client.EXPECT().CreateRule(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req gateway.CreateRuleRequest) (gateway.Rule, error) {
			require.Equal(t, 2, req.Precedence)

			return gateway.Rule{ID: "r-new", Precedence: req.Precedence}, nil
		})

	report, err := g.Reconcile(context.Background(), currentTag, domain.DesiredState{
		OverrideConfigured: true,
		Routes:             []domain.BypassRoute{{IP: "1.1.1.1", Domain: "a.com"}},
	})
	require.NoError(t, err)
	require.Equal(t, reconciler.Report{RulesRemoved: 1, ListsCreated: 1, RulesCreated: 1, Failures: 1}, report)
}

func TestGateway_Reconcile_emptyDesiredOnlyRemoves(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockgateway.NewMockClient(ctrl)
	g := reconciler.NewGateway(client, reconciler.GatewayOptions{})

	client.EXPECT().Rules(gomock.Any()).Return([]gateway.Rule{
		{ID: "r1", Name: "Rules set by script", Description: "session_old"},
	}, nil)
	client.EXPECT().DeleteRule(gomock.Any(), "r1").Return(nil)
	client.EXPECT().Lists(gomock.Any()).Return([]gateway.List{
		{ID: "l1", Name: "Blocked websites by script 1", Description: "session_old"},
	}, nil)
	client.EXPECT().DeleteList(gomock.Any(), "l1").Return(nil)

	report, err := g.Reconcile(context.Background(), currentTag, domain.DesiredState{})
	require.NoError(t, err)
	require.Equal(t, reconciler.Report{RulesRemoved: 1, ListsRemoved: 1}, report)
}

func TestGateway_Reconcile_listFailuresAreReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockgateway.NewMockClient(ctrl)
	g := reconciler.NewGateway(client, reconciler.GatewayOptions{ListCap: 1})

	client.EXPECT().Rules(gomock.Any()).Return(nil, nil)
	client.EXPECT().Lists(gomock.Any()).Return([]gateway.List{
		{ID: "l1", Name: "Override websites by script to IP 1.1.1.1 1", Description: "session_old"},
	}, nil)
	client.EXPECT().DeleteList(gomock.Any(), "l1").Return(serrors.With(serrors.ErrRejected, "in use"))

	gomock.InOrder(
		client.EXPECT().CreateList(gomock.Any(), gomock.Any()).
			Return(gateway.List{}, serrors.FromStatus(http.StatusBadRequest, "too big")),
		client.EXPECT().CreateList(gomock.Any(), gomock.Any()).DoAndReturn(listIDs),
	)
	client.EXPECT().CreateRule(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req gateway.CreateRuleRequest) (gateway.Rule, error) {
			require.Equal(t, "any(dns.domains[*] in $Blocked-websites-by-script-2)", req.Traffic)

			return gateway.Rule{ID: "r-block"}, nil
		})

	report, err := g.Reconcile(context.Background(), currentTag, domain.DesiredState{
		BlockConfigured: true,
		Blocks:          []domain.Domain{"a.com", "b.com"},
	})
	require.NoError(t, err)
	require.Equal(t, reconciler.Report{ListsCreated: 1, RulesCreated: 1, Failures: 2}, report)
}

func TestGateway_Reconcile_noListSavedSkipsRule(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockgateway.NewMockClient(ctrl)
	g := reconciler.NewGateway(client, reconciler.GatewayOptions{})

	client.EXPECT().Rules(gomock.Any()).Return(nil, nil)
	client.EXPECT().Lists(gomock.Any()).Return(nil, nil)
	client.EXPECT().CreateList(gomock.Any(), gomock.Any()).
		Return(gateway.List{}, serrors.With(serrors.ErrRejected, "quota exceeded"))

	report, err := g.Reconcile(context.Background(), currentTag, domain.DesiredState{
		BlockConfigured: true,
		Blocks:          []domain.Domain{"a.com"},
	})
	require.NoError(t, err)
	require.Equal(t, reconciler.Report{Failures: 2}, report)
}

func TestGateway_Reconcile_authAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockgateway.NewMockClient(ctrl)
	g := reconciler.NewGateway(client, reconciler.GatewayOptions{})

	client.EXPECT().Rules(gomock.Any()).Return(nil, nil)
	client.EXPECT().Lists(gomock.Any()).Return([]gateway.List{
		{ID: "l1", Name: "Blocked websites by script 1", Description: "session_old"},
		{ID: "l2", Name: "Blocked websites by script 2", Description: "session_old"},
	}, nil)
	client.EXPECT().DeleteList(gomock.Any(), "l1").Return(serrors.FromStatus(http.StatusForbidden, ""))

	_, err := g.Reconcile(context.Background(), currentTag, domain.DesiredState{
		BlockConfigured: true,
		Blocks:          []domain.Domain{"a.com"},
	})
	require.ErrorIs(t, err, serrors.ErrForbidden)
}

func TestGateway_Reconcile_authOnOverrideRule(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockgateway.NewMockClient(ctrl)
	g := reconciler.NewGateway(client, reconciler.GatewayOptions{})

	client.EXPECT().Rules(gomock.Any()).Return(nil, nil)
	client.EXPECT().Lists(gomock.Any()).Return(nil, nil)
	client.EXPECT().CreateList(gomock.Any(), gomock.Any()).DoAndReturn(listIDs)
	client.EXPECT().CreateRule(gomock.Any(), gomock.Any()).
		Return(gateway.Rule{}, serrors.FromStatus(http.StatusUnauthorized, ""))

	_, err := g.Reconcile(context.Background(), currentTag, domain.DesiredState{
		OverrideConfigured: true,
		Routes:             []domain.BypassRoute{{IP: "1.1.1.1", Domain: "a.com"}},
	})
	require.ErrorIs(t, err, serrors.ErrUnauthorized)
}

func TestGateway_Reconcile_fetchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockgateway.NewMockClient(ctrl)
	g := reconciler.NewGateway(client, reconciler.GatewayOptions{})

	client.EXPECT().Rules(gomock.Any()).Return(nil, serrors.FromStatus(http.StatusBadGateway, "down"))

	_, err := g.Reconcile(context.Background(), currentTag, domain.DesiredState{})
	require.Error(t, err)
	require.Equal(t, http.StatusBadGateway, serrors.StatusCode(err))
}

func TestGateway_Reconcile_customPrefixes(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mockgateway.NewMockClient(ctrl)
	g := reconciler.NewGateway(client, reconciler.GatewayOptions{
		BlockListPrefix:    "fs block",
		OverrideListPrefix: "fs override",
		RulePrefix:         "fs rule",
	})

	client.EXPECT().Rules(gomock.Any()).Return([]gateway.Rule{
		{ID: "default-named", Name: "Rules set by script", Description: "session_old"},
		{ID: "custom", Name: "fs rule", Description: "session_old"},
	}, nil)
	client.EXPECT().DeleteRule(gomock.Any(), "custom").Return(nil)
	client.EXPECT().Lists(gomock.Any()).Return(nil, nil)
	client.EXPECT().CreateList(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req gateway.CreateListRequest) (gateway.List, error) {
			require.Equal(t, "fs block 1", req.Name)

			return listIDs(ctx, req)
		})
	client.EXPECT().CreateRule(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req gateway.CreateRuleRequest) (gateway.Rule, error) {
			require.Equal(t, "fs rule", req.Name)

			return gateway.Rule{ID: "r"}, nil
		})

	_, err := g.Reconcile(context.Background(), currentTag, domain.DesiredState{
		BlockConfigured: true,
		Blocks:          []domain.Domain{"a.com"},
	})
	require.NoError(t, err)
}
