package reconciler

import (
	"context"
	"filtersync/internal/processor"
	"filtersync/pkg/domain"
	"filtersync/pkg/logger"
	"filtersync/pkg/metrics"
	"filtersync/pkg/profile"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Profile reconciles a profile provider incrementally: existing entries are
// compared with the desired state and only the difference is written. All
// writes go through a processor.Processor, one request at a time.
//
// When neither block nor override sources are configured every deny and
// rewrite entry is removed. When only one kind is configured the entries of
// the other kind are left alone.
type Profile struct {
	client  profile.Client
	proc    *processor.Processor
	metrics *metrics.Metrics
}

// NewProfile creates a Profile reconciler backed by client. m may be nil.
func NewProfile(client profile.Client, proc *processor.Processor, m *metrics.Metrics) *Profile {
	if m == nil {
		m = metrics.Noop()
	}

	return &Profile{client: client, proc: proc, metrics: m}
}

// Reconcile implements Reconciler. Profile entries carry no ownership tag, so
// tag is only used for logging.
func (p *Profile) Reconcile(ctx context.Context, tag domain.OwnershipTag, desired domain.DesiredState) (Report, error) {
	ctx = logger.WithFields(ctx, zap.String("tag", string(tag)))
	logger.Phase(ctx, "PROFILE")

	var report Report
	if !desired.BlockConfigured && !desired.OverrideConfigured {
		logger.Info(ctx, "no sources configured, removing every deny and rewrite entry")
		if err := p.teardown(ctx, &report); err != nil {
			return report, err
		}
		logger.Phase(ctx, "FINISHED")

		return report, nil
	}

	if desired.BlockConfigured {
		if err := p.syncDenylist(ctx, desired, &report); err != nil {
			return report, err
		}
	}
	if desired.OverrideConfigured {
		if err := p.syncRewrites(ctx, desired, &report); err != nil {
			return report, err
		}
	}

	logger.Phase(ctx, "FINISHED",
		zap.Int("deniesCreated", report.DeniesCreated),
		zap.Int("deniesRemoved", report.DeniesRemoved),
		zap.Int("rewritesCreated", report.RewritesCreated),
		zap.Int("rewritesRemoved", report.RewritesRemoved),
		zap.Int("failures", report.Failures))

	return report, nil
}

func (p *Profile) syncDenylist(ctx context.Context, desired domain.DesiredState, report *Report) error {
	logger.Step(ctx, "Fetch existing denylist")
	existing, err := p.client.Denylist(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch denylist: %w", err)
	}

	excluded := make(map[domain.Domain]struct{}, len(desired.Excluded))
	for _, d := range desired.Excluded {
		excluded[d] = struct{}{}
	}

	active := make(map[domain.Domain]struct{}, len(existing))
	var toRemove []string
	for _, e := range existing {
		d := domain.Domain(strings.ToLower(e.ID))
		if _, ok := excluded[d]; ok {
			toRemove = append(toRemove, e.ID)

			continue
		}
		if e.Active {
			active[d] = struct{}{}
		}
	}

	if len(toRemove) > 0 {
		logger.Step(ctx, "Remove excluded domains from denylist", zap.Int("count", len(toRemove)))
		stats, err := processor.Run(ctx, p.proc, "delete deny", toRemove, p.client.DeleteDeny)
		p.account(ctx, "deny", metrics.ActionRemoved, stats, &report.DeniesRemoved, report)
		if err != nil {
			return err
		}
	}

	var toCreate []profile.Deny
	for _, d := range desired.Blocks {
		if _, ok := active[d]; ok {
			continue
		}
		toCreate = append(toCreate, profile.Deny{ID: string(d), Active: true})
	}
	logger.Info(ctx, "denylist diff",
		zap.Int("desired", len(desired.Blocks)),
		zap.Int("present", len(desired.Blocks)-len(toCreate)),
		zap.Int("new", len(toCreate)))

	logger.Step(ctx, "Save new denylist")
	stats, err := processor.Run(ctx, p.proc, "create deny", toCreate, p.client.CreateDeny)
	p.account(ctx, "deny", metrics.ActionCreated, stats, &report.DeniesCreated, report)

	return err
}

// PlanRewrites compares existing rewrites with the desired routes. Entries
// for domains that are not desired are left alone; entries pointing at a
// different ip are deleted and recreated; matching entries are kept.
func PlanRewrites(existing []profile.Rewrite, routes []domain.BypassRoute) ([]profile.Rewrite, []profile.CreateRewriteRequest) {
	wanted := domain.DesiredState{Routes: routes}.RouteMap()

	var toDelete []profile.Rewrite
	for _, rw := range existing {
		d := domain.Domain(strings.ToLower(rw.Name))
		ip, ok := wanted[d]
		if !ok {
			continue
		}
		if ip != rw.Content {
			toDelete = append(toDelete, rw)

			continue
		}
		delete(wanted, d)
	}

	var toCreate []profile.CreateRewriteRequest
	for _, r := range routes {
		ip, ok := wanted[r.Domain]
		if !ok {
			continue
		}
		delete(wanted, r.Domain)
		toCreate = append(toCreate, profile.CreateRewriteRequest{Name: string(r.Domain), Content: ip})
	}

	return toDelete, toCreate
}

func (p *Profile) syncRewrites(ctx context.Context, desired domain.DesiredState, report *Report) error {
	logger.Step(ctx, "Fetch existing rewrites")
	existing, err := p.client.Rewrites(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch rewrites: %w", err)
	}

	toDelete, toCreate := PlanRewrites(existing, desired.Routes)
	logger.Info(ctx, "rewrite diff",
		zap.Int("desired", len(desired.Routes)),
		zap.Int("outdated", len(toDelete)),
		zap.Int("new", len(toCreate)))

	if len(toDelete) > 0 {
		logger.Step(ctx, "Remove outdated rewrites")
		stats, err := processor.Run(ctx, p.proc, "delete rewrite", toDelete,
			func(ctx context.Context, rw profile.Rewrite) error { return p.client.DeleteRewrite(ctx, rw.ID) })
		p.account(ctx, "rewrite", metrics.ActionRemoved, stats, &report.RewritesRemoved, report)
		if err != nil {
			return err
		}
	}

	logger.Step(ctx, "Save new rewrites")
	stats, err := processor.Run(ctx, p.proc, "create rewrite", toCreate,
		func(ctx context.Context, req profile.CreateRewriteRequest) error {
			_, err := p.client.CreateRewrite(ctx, req)

			return err
		})
	p.account(ctx, "rewrite", metrics.ActionCreated, stats, &report.RewritesCreated, report)

	return err
}

func (p *Profile) teardown(ctx context.Context, report *Report) error {
	logger.Step(ctx, "Remove denylist")
	denies, err := p.client.Denylist(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch denylist: %w", err)
	}
	ids := make([]string, 0, len(denies))
	for _, d := range denies {
		ids = append(ids, d.ID)
	}
	stats, err := processor.Run(ctx, p.proc, "delete deny", ids, p.client.DeleteDeny)
	p.account(ctx, "deny", metrics.ActionRemoved, stats, &report.DeniesRemoved, report)
	if err != nil {
		return err
	}

	logger.Step(ctx, "Remove rewrites")
	rewrites, err := p.client.Rewrites(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch rewrites: %w", err)
	}
	ids = make([]string, 0, len(rewrites))
	for _, rw := range rewrites {
		ids = append(ids, rw.ID)
	}
	stats, err = processor.Run(ctx, p.proc, "delete rewrite", ids, p.client.DeleteRewrite)
	p.account(ctx, "rewrite", metrics.ActionRemoved, stats, &report.RewritesRemoved, report)

	return err
}

// account adds processor stats to the report and the resource metrics.
func (p *Profile) account(ctx context.Context, kind, action string, stats processor.Stats, counter *int,
	report *Report,
) {
	*counter += stats.Succeeded
	report.Failures += stats.Rejected
	p.metrics.RecordResources(ctx, kind, action, stats.Succeeded)
	p.metrics.RecordResources(ctx, kind, metrics.ActionFailed, stats.Rejected)
}
