package main

import (
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/GChainey/substackToKindle/internal/fakeapi"
)

func newMockCmd() *cobra.Command {
	var addr string
	var delay time.Duration
	var email bool
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve a scripted fake backend for demos",
		Long: "Serves the API under /api with four newsletters: astral (healthy), flaky " +
			"(streams cut early), brittle (jobs fail) and offline (streams refused).",
		Args: cobra.NoArgs,
		// Needs no client config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)
			srv := fakeapi.Demo(fakeapi.Options{Delay: delay, EmailConfigured: email, Logger: logger})
			defer srv.Close()
			logger.Info("mock backend listening", "addr", addr, "api", "http://"+addr+"/api")
			return fakeapi.ListenAndServe(ctx, addr, srv.Handler())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	cmd.Flags().DurationVar(&delay, "delay", 250*time.Millisecond, "pause between scripted events")
	cmd.Flags().BoolVar(&email, "email", true, "report Kindle delivery as configured")
	return cmd
}
