package root

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fireq/internal/audit"
	"fireq/internal/buildctx"
	"fireq/internal/config"
	"fireq/internal/core"
	"fireq/internal/logview"
	"fireq/internal/report"
	"fireq/internal/server"
	"fireq/internal/status"
	"fireq/internal/storage"
)

func newServeCmd(flags *configFlags) *cobra.Command {
	var addr, style string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive webhooks and run builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ls := storage.NewLogStorage(cfg.Root)
			journals := audit.NewJournals(ls)
			exec := core.NewShellExecutor(ls, logview.NewRenderer(style), logger)
			runner, err := core.NewRunner(cfg, exec, status.NewReporter(cfg, ls, journals, logger), logger)
			if err != nil {
				return err
			}
			runner.Summary = report.NewWriter(ls, journals)

			srv := server.New(cfg, buildctx.NewBuilder(cfg, ls, logger), runner, ls, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":"+config.Port(), "listen address")
	cmd.Flags().StringVar(&style, "log-style", logview.DefaultStyle, "chroma style of annotated logs")
	return cmd
}
