package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/deliver"
	"github.com/GChainey/substackToKindle/internal/history"
	"github.com/GChainey/substackToKindle/internal/job"
	"github.com/GChainey/substackToKindle/internal/stream"
	"github.com/GChainey/substackToKindle/internal/watch"
)

type convertOptions struct {
	cookie string
	out    string
	kindle string
}

func newConvertCmd(opts *rootOptions) *cobra.Command {
	var co convertOptions
	cmd := &cobra.Command{
		Use:   "convert <subdomain> <slug>...",
		Short: "Convert posts to EPUB, then download the zip and/or mail it to a Kindle",
		Long: "Creates a conversion job and follows it until it ends, streaming progress and " +
			"polling when the stream drops. Without --out or --kindle the zip is saved in the " +
			"current directory.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, ok := client.ParseSubdomain(args[0])
			if !ok {
				return fmt.Errorf("not a newsletter name or substack.com URL: %q", args[0])
			}
			return runConvert(cmd.Context(), cmd.OutOrStdout(), opts, sub, args[1:], co)
		},
	}
	cmd.Flags().StringVar(&co.cookie, "cookie", "", "substack.sid session cookie for paid posts")
	cmd.Flags().StringVarP(&co.out, "out", "o", "", "write the zip to this path")
	cmd.Flags().StringVar(&co.kindle, "kindle", "", "send the EPUBs to this Kindle address")
	return cmd
}

func runConvert(ctx context.Context, out io.Writer, opts *rootOptions, sub string, slugs []string, co convertOptions) error {
	cfg := opts.cfg
	logger := pslog.Ctx(ctx)
	api := client.NewHTTPClient(cfg.APIURL, cfg.HTTPTimeout)

	if co.kindle != "" {
		if _, err := deliver.ValidEmail(co.kindle); err != nil {
			return err
		}
	}
	titles := postTitles(ctx, api, sub, slugs)

	id, err := api.CreateJob(ctx, sub, slugs, co.cookie)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	logger.Info("job created", "job", id, "subdomain", sub, "posts", len(slugs))

	st, err := followJob(ctx, out, api, stream.ForName(cfg.Transport), cfg.PollInterval, id)
	if err != nil {
		return err
	}
	if st.Status != job.Completed {
		return fmt.Errorf("job %s %s: %s", id, st.Status, st.Error)
	}

	log := history.New(cfg.StateDir, cfg.HistoryLimit)
	rec := history.Record{Subdomain: sub, PostTitles: titles, JobID: id}

	if co.out != "" || co.kindle == "" {
		path := co.out
		if path == "" {
			path = deliver.FileName(sub, id)
		}
		n, err := deliver.SaveZip(ctx, api, id, path)
		if err != nil {
			return fmt.Errorf("download: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Saved %s (%d bytes)\n", path, n)
		rec.Method = history.MethodDownload
		if _, err := log.Add(rec); err != nil {
			logger.Warn("history not saved", "err", err)
		}
	}
	if co.kindle != "" {
		msg, err := deliver.Send(ctx, api, id, co.kindle)
		if err != nil {
			return fmt.Errorf("send to kindle: %w", err)
		}
		_, _ = fmt.Fprintln(out, msg)
		rec.Method = history.MethodKindle
		rec.KindleEmail = co.kindle
		if _, err := log.Add(rec); err != nil {
			logger.Warn("history not saved", "err", err)
		}
	}
	return nil
}

// followJob drives a job watcher headlessly and prints progress as it moves.
func followJob(ctx context.Context, out io.Writer, api watch.JobAPI, transport stream.Transport, interval time.Duration, id string) (job.State, error) {
	w := watch.NewJob(ctx, api, transport, interval)
	var last job.State
	u := watch.UpdateFunc(func(msg tea.Msg) tea.Cmd {
		cmd := w.Update(msg)
		st := w.State()
		if st.Status != last.Status || st.Progress != last.Progress || len(st.Completed) != len(last.Completed) {
			line := fmt.Sprintf("[%s] %s %d/%d", w.Mode(), st.Status, st.Progress, st.Total)
			if n := len(st.Completed); n > len(last.Completed) {
				line += "  ✓ " + st.Completed[n-1].Label
			}
			_, _ = fmt.Fprintln(out, line)
		}
		if n := len(st.Warnings); n > len(last.Warnings) {
			_, _ = fmt.Fprintln(out, "  warning: "+st.Warnings[n-1])
		}
		last = st
		return cmd
	})
	if err := watch.Drive(ctx, u, w.Start(id)); err != nil {
		w.Stop()
		return w.State(), err
	}
	if w.Mode() == watch.Failed {
		var err error = errors.New(stream.MsgConnectFailed)
		if f := w.Fault(); f != nil {
			err = f
		}
		return w.State(), fmt.Errorf("follow job %s: %w", id, err)
	}
	return w.State(), nil
}

// postTitles maps slugs to titles for the history record; unknown slugs
// keep their slug.
func postTitles(ctx context.Context, api *client.HTTPClient, sub string, slugs []string) []string {
	titles := make([]string, len(slugs))
	copy(titles, slugs)
	list, err := api.FetchPosts(ctx, sub)
	if err != nil {
		pslog.Ctx(ctx).Debug("post titles unavailable", "subdomain", sub, "err", err)
		return titles
	}
	bySlug := make(map[string]string, len(list.Posts))
	for _, p := range list.Posts {
		bySlug[p.Slug] = p.Title
	}
	for i, s := range slugs {
		if t, ok := bySlug[s]; ok {
			titles[i] = t
		}
	}
	return titles
}
