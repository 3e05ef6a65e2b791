package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"matchastock/internal/config"
)

func newScrapeCmd() *cobra.Command {
	var (
		brand  string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape cycle for every configured site, or one brand",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := build(ctx, config.Load(), buildOptions{DryRun: dryRun})
			if err != nil {
				return err
			}
			defer rt.close()

			if brand != "" {
				var picked []config.Site
				for _, s := range rt.sites {
					if strings.EqualFold(s.Brand, brand) {
						picked = append(picked, s)
					}
				}
				if len(picked) == 0 {
					return fmt.Errorf("no site configured for brand %q", brand)
				}
				rt.scheduler.Sites = picked
			}

			run, err := rt.scheduler.RunOnce(ctx)
			out := cmd.OutOrStdout()
			for _, r := range run.Reports {
				fmt.Fprintf(out, "%-28s pages=%d errors=%d items=%d created=%d appended=%d restocked=%d notified=%d\n",
					r.Brand, r.Pages, r.PageErrors, r.Items, r.Result.Created, r.Result.Appended, len(r.Result.Restocked), r.Dispatched)
			}
			for _, b := range run.Skipped {
				fmt.Fprintf(out, "%-28s skipped: cycle running elsewhere\n", b)
			}
			if err != nil {
				return errors.Join(errors.New("some brands failed"), err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&brand, "brand", "", "only scrape this brand")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log notifications instead of sending them")
	return cmd
}
