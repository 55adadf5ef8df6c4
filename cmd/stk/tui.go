package main

import (
	"context"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/GChainey/substackToKindle/internal/app"
	"github.com/GChainey/substackToKindle/internal/client"
	"github.com/GChainey/substackToKindle/internal/config"
	"github.com/GChainey/substackToKindle/internal/history"
	"github.com/GChainey/substackToKindle/internal/logx"
	"github.com/GChainey/substackToKindle/internal/prefs"
	"github.com/GChainey/substackToKindle/internal/stream"
)

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [subdomain]",
		Short: "Open the interactive client",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts.cfg, firstArg(args))
		},
	}
}

// runTUI owns the terminal until the user quits; logs go to cfg.LogFile.
func runTUI(ctx context.Context, cfg config.Config, subdomain string) error {
	f, err := logx.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer f.Close()

	logger := logx.New(f, logx.Options{Level: cfg.LogLevel, NoColor: true})
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())

	store := prefs.NewStore(cfg.StateDir)
	p, err := store.Load()
	if err != nil {
		logger.Warn("preferences unreadable, using defaults", "path", store.Path(), "err", err)
	}
	ctx = prefs.WithContext(ctx, p)

	logger.Info("tui starting", "api", cfg.APIURL, "transport", cfg.Transport, "subdomain", subdomain)
	m := app.New(ctx, app.Options{
		API:          client.NewHTTPClient(cfg.APIURL, cfg.HTTPTimeout),
		Transport:    stream.ForName(cfg.Transport),
		PollInterval: cfg.PollInterval,
		Prefs:        store,
		History:      history.New(cfg.StateDir, cfg.HistoryLimit),
		DownloadDir:  ".",
		GlamourStyle: glamourStyle(),
		Subdomain:    subdomain,
	})

	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("tui stopped")
	return nil
}
