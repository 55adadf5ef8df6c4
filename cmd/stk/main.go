// Command stk streams a Substack archive, converts picked posts to EPUB and
// delivers them as a zip or to a Kindle address.
package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"

	"github.com/GChainey/substackToKindle/internal/config"
	"github.com/GChainey/substackToKindle/internal/logx"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole, NoColor: !isTerminal(os.Stderr)}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("stk command failed")
		return 1
	}
	return 0
}

// rootOptions is shared by every subcommand. cfg is filled before RunE.
type rootOptions struct {
	configPath string
	apiURL     string
	transport  string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "stk [subdomain]",
		Short:         "Turn Substack archives into EPUBs for your Kindle",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts.cfg, firstArg(args))
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "backend API base URL (overrides config)")
	root.PersistentFlags().StringVar(&opts.transport, "transport", "", "stream transport: sse or websocket (overrides config)")

	root.AddCommand(newTUICmd(opts))
	root.AddCommand(newPostsCmd(opts))
	root.AddCommand(newConvertCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newMockCmd())
	return root
}

// load reads the config, applies flag overrides and rebinds the stderr
// logger to the configured level.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
	}
	if o.transport != "" {
		cfg.Transport = o.transport
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	logger := logx.New(cmd.ErrOrStderr(), logx.Options{
		Level:   cfg.LogLevel,
		Console: true,
		NoColor: !isTerminal(os.Stderr),
	})
	cmd.SetContext(pslog.ContextWithLogger(cmd.Context(), logger))
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
