package main

import (
	"filtersync/internal/config"
	"filtersync/internal/reconciler"
	"filtersync/internal/runner"
	"filtersync/internal/source"
	"filtersync/pkg/chunk"
	"filtersync/pkg/domain"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// planOutput is the document printed by the plan command.
type planOutput struct {
	Provider string              `yaml:"provider,omitempty"`
	Desired  domain.DesiredState `yaml:"desired"`
	// Lists is the number of managed block lists a gateway run would create.
	Lists int `yaml:"blockLists"`
	// Groups holds the override lists per IP.
	Groups []domain.RouteGroup `yaml:"overrideGroups,omitempty"`
}

func planCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Prints the desired state computed from the sources without touching the provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := runner.New(cfg.ProviderName(), newLoader(cfg), nil, newSources(cfg), nil)

			desired, err := r.Plan(cmd.Context())
			if err != nil {
				return err
			}

			listCap := cfg.Gateway.ListCap
			if listCap <= 0 {
				listCap = reconciler.DefaultListCap
			}
			out := planOutput{
				Provider: cfg.ProviderName(),
				Desired:  desired,
				Lists:    len(chunk.Split(desired.Blocks, listCap)),
				Groups:   source.GroupByIP(desired.Routes),
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("could not encode plan: %w", err)
			}

			return enc.Close()
		},
	}
}
