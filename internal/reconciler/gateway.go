package reconciler

import (
	"context"
	"errors"
	"filtersync/internal/source"
	"filtersync/pkg/chunk"
	"filtersync/pkg/domain"
	"filtersync/pkg/gateway"
	"filtersync/pkg/logger"
	"filtersync/pkg/metrics"
	"filtersync/pkg/serrors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Managed name prefixes. Lists and rules whose name starts with one of them
// belong to this tool.
const (
	DefaultBlockListPrefix    = "Blocked websites by script"
	DefaultOverrideListPrefix = "Override websites by script"
	DefaultRulePrefix         = "Rules set by script"
)

// DefaultListCap is the maximum number of items of a gateway list.
const DefaultListCap = 1000

// GatewayOptions configures a Gateway reconciler. Zero values select the defaults.
type GatewayOptions struct {
	BlockListPrefix    string
	OverrideListPrefix string
	RulePrefix         string
	ListCap            int
	Metrics            *metrics.Metrics
}

// Gateway reconciles a gateway provider by full replacement.
//
// Every run first removes the managed rules and lists that do not carry the
// run's ownership tag, then creates fresh tagged lists and the rules
// referencing them. Resources outside the managed prefixes are never touched.
// Deletion happens before creation, so a run failing halfway leaves no
// managed configuration until the next successful run.
//
// Per item failures are reported and counted; sibling items are still
// attempted. Authorization failures abort the run at any step.
type Gateway struct {
	client gateway.Client
	opts   GatewayOptions
}

// NewGateway creates a Gateway reconciler backed by client.
func NewGateway(client gateway.Client, opts GatewayOptions) *Gateway {
	if opts.BlockListPrefix == "" {
		opts.BlockListPrefix = DefaultBlockListPrefix
	}
	if opts.OverrideListPrefix == "" {
		opts.OverrideListPrefix = DefaultOverrideListPrefix
	}
	if opts.RulePrefix == "" {
		opts.RulePrefix = DefaultRulePrefix
	}
	if opts.ListCap <= 0 {
		opts.ListCap = DefaultListCap
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop()
	}

	return &Gateway{client: client, opts: opts}
}

// Reconcile implements Reconciler.
func (g *Gateway) Reconcile(ctx context.Context, tag domain.OwnershipTag, desired domain.DesiredState) (Report, error) {
	ctx = logger.WithFields(ctx, zap.String("tag", string(tag)))
	logger.Phase(ctx, "GATEWAY")
	logger.Info(ctx, "previously generated lists and rules are always removed; "+
		"run without sources to clear the managed configuration")

	var report Report

	logger.Step(ctx, "Remove old rules")
	rules, err := g.client.Rules(ctx)
	if err != nil {
		return report, fmt.Errorf("could not fetch rules: %w", err)
	}
	surviving, err := g.removeStaleRules(ctx, tag, rules, &report)
	if err != nil {
		return report, err
	}

	logger.Step(ctx, "Remove old lists")
	lists, err := g.client.Lists(ctx)
	if err != nil {
		return report, fmt.Errorf("could not fetch lists: %w", err)
	}
	if err := g.removeStaleLists(ctx, tag, lists, &report); err != nil {
		return report, err
	}

	used := make(map[int]struct{}, len(surviving))
	for _, r := range surviving {
		used[r.Precedence] = struct{}{}
	}

	logger.Step(ctx, "Create block lists")
	if len(desired.Blocks) > 0 {
		blockRule, err := g.createBlocking(ctx, tag, desired.Blocks, &report)
		if err != nil {
			return report, err
		}
		if blockRule != nil && blockRule.Precedence > 0 {
			used[blockRule.Precedence] = struct{}{}
		}
	} else {
		logger.Warn(ctx, "no domains to block were provided")
	}

	logger.Step(ctx, "Create override lists")
	if len(desired.Routes) > 0 {
		if err := g.createOverrides(ctx, tag, source.GroupByIP(desired.Routes), used, &report); err != nil {
			return report, err
		}
	} else {
		logger.Warn(ctx, "no domains to override were provided")
	}

	logger.Phase(ctx, "FINISHED",
		zap.Int("rulesRemoved", report.RulesRemoved),
		zap.Int("listsRemoved", report.ListsRemoved),
		zap.Int("listsCreated", report.ListsCreated),
		zap.Int("rulesCreated", report.RulesCreated),
		zap.Int("failures", report.Failures))

	return report, nil
}

// isStale reports whether a managed resource was created by another run.
func isStale(name, description string, tag domain.OwnershipTag, prefixes ...string) bool {
	if description == string(tag) {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}

	return false
}

// removeStaleRules deletes managed rules of earlier runs and returns the rules
// that are still present afterwards.
func (g *Gateway) removeStaleRules(ctx context.Context, tag domain.OwnershipTag, rules []gateway.Rule,
	report *Report,
) ([]gateway.Rule, error) {
	var stale int
	surviving := make([]gateway.Rule, 0, len(rules))
	for _, r := range rules {
		if !isStale(r.Name, r.Description, tag, g.opts.RulePrefix) {
			surviving = append(surviving, r)

			continue
		}

		stale++
		if err := g.observe(ctx, "delete rule", func() error { return g.client.DeleteRule(ctx, r.ID) }); err != nil {
			if serrors.IsAuth(err) {
				return nil, fmt.Errorf("could not remove rule %s: %w", r.ID, err)
			}
			report.Failures++
			surviving = append(surviving, r)
			logger.Warn(ctx, "could not remove old rule", zap.String("id", r.ID), zap.Error(err))

			continue
		}
		report.RulesRemoved++
	}

	g.opts.Metrics.RecordResources(ctx, "rule", metrics.ActionRemoved, report.RulesRemoved)
	logger.Info(ctx, fmt.Sprintf("%d of %d old rules have been removed", report.RulesRemoved, stale))

	return surviving, nil
}

func (g *Gateway) removeStaleLists(ctx context.Context, tag domain.OwnershipTag, lists []gateway.List,
	report *Report,
) error {
	var ids []string
	for _, l := range lists {
		if isStale(l.Name, l.Description, tag, g.opts.BlockListPrefix, g.opts.OverrideListPrefix) {
			ids = append(ids, l.ID)
		}
	}
	if len(ids) == 0 {
		logger.Info(ctx, "no lists found to remove")

		return nil
	}

	var failed []string
	for _, id := range ids {
		if err := g.observe(ctx, "delete list", func() error { return g.client.DeleteList(ctx, id) }); err != nil {
			if serrors.IsAuth(err) {
				return fmt.Errorf("could not remove list %s: %w", id, err)
			}
			failed = append(failed, id)
			logger.Warn(ctx, "could not remove old list", zap.String("id", id), zap.Error(err))

			continue
		}
		report.ListsRemoved++
	}

	report.Failures += len(failed)
	g.opts.Metrics.RecordResources(ctx, "list", metrics.ActionRemoved, report.ListsRemoved)
	if len(failed) > 0 {
		logger.Error(ctx, fmt.Sprintf("failed to remove old lists (%d of %d)", len(failed), len(ids)),
			zap.Strings("ids", failed))

		return nil
	}
	logger.Info(ctx, fmt.Sprintf("%d of %d old lists have been removed", report.ListsRemoved, len(ids)))

	return nil
}

// createLists chunks domains and creates one tagged list per chunk, one
// request at a time. name receives the 1-based chunk number.
func (g *Gateway) createLists(ctx context.Context, tag domain.OwnershipTag, domains []domain.Domain,
	name func(n int) string, report *Report,
) ([]gateway.List, error) {
	chunks := chunk.Split(domains, g.opts.ListCap)
	logger.Info(ctx, "saving lists", zap.Int("domains", len(domains)), zap.Int("lists", len(chunks)))

	created := make([]gateway.List, 0, len(chunks))
	for i, c := range chunks {
		items := make([]gateway.Item, 0, len(c))
		for _, d := range c {
			items = append(items, gateway.Item{Value: string(d)})
		}
		req := gateway.CreateListRequest{
			Name:        name(i + 1),
			Type:        gateway.ListTypeDomain,
			Description: string(tag),
			Items:       items,
		}

		var list gateway.List
		err := g.observe(ctx, "create list", func() error {
			var err error
			list, err = g.client.CreateList(ctx, req)

			return err
		})
		if err != nil {
			if serrors.IsAuth(err) {
				return nil, fmt.Errorf("could not create list %q: %w", req.Name, err)
			}
			report.Failures++
			g.opts.Metrics.RecordResources(ctx, "list", metrics.ActionFailed, 1)
			logger.Warn(ctx, "could not save list", zap.String("name", req.Name), zap.Error(err))

			continue
		}
		created = append(created, list)
		logger.Debug(ctx, "progress", zap.Int("saved", len(created)), zap.Int("total", len(chunks)))
	}

	report.ListsCreated += len(created)
	g.opts.Metrics.RecordResources(ctx, "list", metrics.ActionCreated, len(created))
	logger.Info(ctx, fmt.Sprintf("%d of %d new lists have been saved", len(created), len(chunks)))

	return created, nil
}

// createBlocking creates the block lists and the rule referencing them. It
// returns the created rule, or nil when no rule was created.
func (g *Gateway) createBlocking(ctx context.Context, tag domain.OwnershipTag, blocks []domain.Domain,
	report *Report,
) (*gateway.Rule, error) {
	lists, err := g.createLists(ctx, tag, blocks, func(n int) string {
		return fmt.Sprintf("%s %d", g.opts.BlockListPrefix, n)
	}, report)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		report.Failures++
		logger.Error(ctx, "no block list was saved, skipping blocking rule")

		return nil, nil
	}

	logger.Step(ctx, "Create blocking rule")
	rule, err := g.createRule(ctx, gateway.CreateRuleRequest{
		Name:        g.opts.RulePrefix,
		Description: string(tag),
		Action:      gateway.ActionBlock,
		Filters:     []string{gateway.FilterDNS},
		Traffic:     TrafficExpression(lists),
		Enabled:     true,
	}, report)
	if err != nil {
		return nil, err
	}

	return rule, nil
}

// createRule creates a rule. Non-auth failures are counted and reported and
// yield a nil rule.
func (g *Gateway) createRule(ctx context.Context, req gateway.CreateRuleRequest, report *Report) (*gateway.Rule, error) {
	var rule gateway.Rule
	err := g.observe(ctx, "create rule", func() error {
		var err error
		rule, err = g.client.CreateRule(ctx, req)

		return err
	})
	if err != nil {
		if serrors.IsAuth(err) {
			return nil, fmt.Errorf("could not create rule %q: %w", req.Name, err)
		}
		report.Failures++
		g.opts.Metrics.RecordResources(ctx, "rule", metrics.ActionFailed, 1)
		logger.Error(ctx, "could not set rule", zap.String("name", req.Name), zap.Error(err))

		return nil, nil
	}

	report.RulesCreated++
	g.opts.Metrics.RecordResources(ctx, "rule", metrics.ActionCreated, 1)

	return &rule, nil
}

// createOverrides creates the lists of every ip group one after another, then
// submits one override rule per ip concurrently. Precedences are allocated in
// group order before submission.
func (g *Gateway) createOverrides(ctx context.Context, tag domain.OwnershipTag, groups []domain.RouteGroup,
	used map[int]struct{}, report *Report,
) error {
	var reqs []gateway.CreateRuleRequest
	counter := NewPrecedenceCounter(used)
	for _, group := range groups {
		logger.Info(ctx, "posting override lists", zap.String("ip", group.IP))
		lists, err := g.createLists(ctx, tag, group.Domains, func(n int) string {
			return fmt.Sprintf("%s to IP %s %d", g.opts.OverrideListPrefix, group.IP, n)
		}, report)
		if err != nil {
			return err
		}
		if len(lists) == 0 {
			report.Failures++
			logger.Error(ctx, "no override list was saved, skipping override rule", zap.String("ip", group.IP))

			continue
		}

		reqs = append(reqs, gateway.CreateRuleRequest{
			Name:         fmt.Sprintf("%s override to IP -> %s", g.opts.RulePrefix, group.IP),
			Description:  string(tag),
			Action:       gateway.ActionOverride,
			Filters:      []string{gateway.FilterDNS},
			Traffic:      TrafficExpression(lists),
			Precedence:   counter.Next(),
			Enabled:      true,
			RuleSettings: &gateway.RuleSettings{OverrideIPs: []string{group.IP}},
		})
	}
	if len(reqs) == 0 {
		return nil
	}

	logger.Step(ctx, "Create override rules")
	var (
		mu  sync.Mutex
		eg  errgroup.Group
		sub Report
	)
	for _, req := range reqs {
		eg.Go(func() error {
			logger.Info(ctx, "posting override rule", zap.String("ip", req.RuleSettings.OverrideIPs[0]),
				zap.Int("precedence", req.Precedence))

			var local Report
			_, err := g.createRule(ctx, req, &local)

			mu.Lock()
			sub.RulesCreated += local.RulesCreated
			sub.Failures += local.Failures
			mu.Unlock()

			return err
		})
	}
	err := eg.Wait()
	report.RulesCreated += sub.RulesCreated
	report.Failures += sub.Failures

	return err
}

// observe runs one provider call and records its outcome.
func (g *Gateway) observe(ctx context.Context, op string, call func() error) error {
	start := time.Now()
	err := call()
	g.opts.Metrics.RecordRequest(ctx, op, outcome(err), time.Since(start))

	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, serrors.ErrRejected):
		return metrics.OutcomeRejected
	case errors.Is(err, serrors.ErrRateLimited):
		return metrics.OutcomeThrottled
	default:
		return metrics.OutcomeFailed
	}
}
