package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/GChainey/substackToKindle/internal/catalog"
	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/stream"
	"github.com/GChainey/substackToKindle/internal/watch"
)

func newPostsCmd(opts *rootOptions) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "posts <subdomain>",
		Short: "Stream a newsletter archive and print it as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, ok := client.ParseSubdomain(args[0])
			if !ok {
				return fmt.Errorf("not a newsletter name or substack.com URL: %q", args[0])
			}
			ctx := cmd.Context()
			cfg := opts.cfg
			api := client.NewHTTPClient(cfg.APIURL, cfg.HTTPTimeout)

			w := watch.NewCatalog(ctx, api, stream.ForName(cfg.Transport))
			if err := watch.Drive(ctx, w, w.Load(sub)); err != nil {
				return err
			}
			st := w.State()
			if w.Mode() == watch.Failed {
				return fmt.Errorf("load %s: %s", sub, st.Error)
			}

			items := catalog.Filter(st.Items, query)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), postsTable(sub, items, st.Error != ""))
			if st.Error != "" {
				pslog.Ctx(ctx).Warn("archive incomplete", "subdomain", sub, "loaded", len(st.Items), "err", st.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "filter", "f", "", "only list posts whose title or subtitle contains this")
	return cmd
}
