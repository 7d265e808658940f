package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/logdeck/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "logdeck: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var opts app.Options

	root := &cobra.Command{
		Use:   "logdeck",
		Short: "logdeck, a live log viewer with diagnostic context filtering",
		Long: `logdeck collects log events from HTTP, files, a polled endpoint or Kafka,
keeps the newest of them in a bounded in-memory store and shows them in a
terminal UI filtered by their diagnostic context (MDC).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ~/.config/logdeck/config.toml)")
	flags.StringVar(&opts.PrefsPath, "prefs", "", "display preferences file (default ~/.config/logdeck/prefs.toml)")
	flags.StringVar(&opts.Listen, "listen", "", "HTTP/WebSocket listen address, overrides listen.addr")
	flags.StringVar(&opts.Poll, "poll", "", "endpoint to poll for events, overrides poll.url")
	flags.StringSliceVarP(&opts.Files, "file", "f", nil, "file glob to import, repeatable")

	view := &cobra.Command{
		Use:   "view [files...]",
		Short: "Open the terminal UI",
		Long: `Open the terminal UI. Positional arguments are file globs to import,
for example:

  logdeck view "/var/log/app/**/*.log"
  logdeck view --listen 127.0.0.1:7700`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := opts
			o.Files = append(o.Files, args...)
			return app.Run(cmd.Context(), o)
		},
	}

	ingest := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Run producers and the listener without the UI",
		Long: `Run headless: producers feed the dispatcher and connected WebSocket viewers
receive the live stream. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := opts
			o.Headless = true
			o.Files = append(o.Files, args...)
			o.LogOutput = cmd.ErrOrStderr()
			return app.Run(cmd.Context(), o)
		},
	}

	root.AddCommand(view, ingest)
	root.RunE = view.RunE
	root.Args = cobra.ArbitraryArgs
	return root
}
