package source

import (
	"context"
	"filtersync/pkg/domain"
	"filtersync/pkg/logger"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sources lists the configured source URLs in priority order.
type Sources struct {
	Block    []string
	Override []string
	// Exclude holds raw exclusion values, see ParseExclusions.
	Exclude []string
}

// Loader turns configured sources into a desired state.
type Loader struct {
	fetcher Fetcher
}

// NewLoader returns a loader reading sources through fetcher.
func NewLoader(fetcher Fetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// Load fetches every source concurrently, then normalizes and merges them in
// configured order. A single failed fetch fails the load.
func (l *Loader) Load(ctx context.Context, src Sources) (domain.DesiredState, error) {
	state := domain.DesiredState{
		BlockConfigured:    len(src.Block) > 0,
		OverrideConfigured: len(src.Override) > 0,
		Excluded:           ParseExclusions(src.Exclude),
	}

	blockTexts, overrideTexts, err := l.fetchAll(ctx, src.Block, src.Override)
	if err != nil {
		return domain.DesiredState{}, err
	}

	blocks := make([][]domain.Domain, 0, len(blockTexts))
	for _, text := range blockTexts {
		blocks = append(blocks, NormalizeBlocks(text))
	}
	merged := MergeBlocks(blocks...)
	state.Blocks = Exclude(merged, state.Excluded)

	routes := make([][]domain.BypassRoute, 0, len(overrideTexts))
	for _, text := range overrideTexts {
		routes = append(routes, NormalizeRoutes(text))
	}
	state.Routes = MergeRoutes(routes...)

	logger.Info(ctx, "desired state loaded",
		zap.Int("blocks", len(state.Blocks)),
		zap.Int("excluded", len(merged)-len(state.Blocks)),
		zap.Int("routes", len(state.Routes)))

	return state, nil
}

func (l *Loader) fetchAll(ctx context.Context, block, override []string) ([]string, []string, error) {
	blockTexts := make([]string, len(block))
	overrideTexts := make([]string, len(override))

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(kind, url string, dst *string) {
		g.Go(func() error {
			logger.Info(gctx, "loading list", zap.String("kind", kind), zap.String("url", url))
			text, err := l.fetcher.Fetch(gctx, url)
			if err != nil {
				return fmt.Errorf("could not load %s list: %w", kind, err)
			}
			*dst = text

			return nil
		})
	}
	for i, url := range block {
		fetch("block", url, &blockTexts[i])
	}
	for i, url := range override {
		fetch("override", url, &overrideTexts[i])
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return blockTexts, overrideTexts, nil
}
