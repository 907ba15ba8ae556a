package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixir/citation-enrichment-service/internal/app"
)

func (c *cli) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the citation cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, err := app.Build(cmd.Context(), c.cfg, nil, c.logger)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			st := pipeline.Cache.Stats()
			fmt.Fprintln(c.out, titleStyle.Render(fmt.Sprintf("Citation cache (%s backend, ttl %d days)", c.cfg.Cache.Backend, c.cfg.Cache.TTLDays)))
			fmt.Fprintf(c.out, "  total    %d\n", st.Total)
			fmt.Fprintf(c.out, "  valid    %d\n", st.Valid)
			fmt.Fprintf(c.out, "  expired  %d\n", st.Expired)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, err := app.Build(cmd.Context(), c.cfg, nil, c.logger)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			removed, err := pipeline.Cache.ClearExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("prune cache: %w", err)
			}
			fmt.Fprintf(c.out, "removed %d expired entries\n", removed)
			return nil
		},
	})

	return cmd
}
