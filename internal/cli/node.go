package cli

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"tilenotes/internal/logging"
	"tilenotes/internal/node"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newNodeCmd(app *App) *cobra.Command {
	var addr string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a local document node backed by SQLite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = filepath.Join(app.ConfigDir, "node.sqlite")
			}
			if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
				return writeErr(cmd, err)
			}

			// The node always logs to the console as well as the log file.
			log, flush, err := logging.New(logging.Options{
				File:    app.cfg.LogPath(app.ConfigDir),
				Console: cmd.ErrOrStderr(),
				Verbose: app.Verbose,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer flush()
			log = log.With(zap.String("component", "node"))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := node.OpenStore(ctx, dbPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			log.Info("node store opened", zap.String("db", dbPath))
			if err := node.NewServer(st, log).ListenAndServe(ctx, addr); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("TILENOTES_NODE_ADDR", ":7007"), "Listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default <config-dir>/node.sqlite)")
	return cmd
}
