package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"tilenotes/internal/docnet"
	"tilenotes/internal/format"
	"tilenotes/internal/logging"
	"tilenotes/internal/store"
	"tilenotes/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	ConfigDir  string
	NodeURL    string
	Seed       string
	Timeout    time.Duration
	Verbose    bool
	PrettyJSON bool
	Format     string

	cfg      *store.GlobalConfig
	log      *zap.Logger
	flushLog func()
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "tilenotes",
		Short:        "Notes stored as documents on a decentralized document network",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start a local node and publish the schemas once
  tilenotes node &
  tilenotes identity init
  tilenotes bootstrap

  # Start the interactive editor
  tilenotes

  # Scriptable commands
  tilenotes notes new --title "Groceries" --text "eggs, milk"
  tilenotes notes list
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.init(cmd)
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app.flushLog != nil {
			app.flushLog()
		}
	}

	cmd.PersistentFlags().StringVar(&app.ConfigDir, "config-dir", envOr("TILENOTES_CONFIG_DIR", ""), "Config directory (default ~/.tilenotes)")
	cmd.PersistentFlags().StringVar(&app.NodeURL, "node", envOr("TILENOTES_NODE_URL", ""), "Node URL (default from config, then "+docnet.DefaultNodeURL+")")
	cmd.PersistentFlags().StringVar(&app.Seed, "seed", envOr("TILENOTES_SEED", ""), "Identity seed as hex (overrides the seed file)")
	cmd.PersistentFlags().DurationVar(&app.Timeout, "timeout", 0, "Per-operation network timeout (default from config, 30s)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Log debug output to stderr")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("TILENOTES_FORMAT", "json"), "Output format (json|text)")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newNotesCmd(app))
	cmd.AddCommand(newBootstrapCmd(app))
	cmd.AddCommand(newNodeCmd(app))
	cmd.AddCommand(newIdentityCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newConfigCmd(app))

	return cmd
}

func (a *App) init(cmd *cobra.Command) error {
	if strings.TrimSpace(a.ConfigDir) == "" {
		d, err := store.ConfigDir()
		if err != nil {
			return err
		}
		a.ConfigDir = d
	}
	cfg, err := store.LoadConfigFrom(a.ConfigDir)
	if err != nil {
		return writeErr(cmd, fmt.Errorf("load config: %w", err))
	}
	a.cfg = cfg

	opts := logging.Options{File: cfg.LogPath(a.ConfigDir), Verbose: a.Verbose}
	if a.Verbose {
		opts.Console = cmd.ErrOrStderr()
	}
	log, flush, err := logging.New(opts)
	if err != nil {
		// Logging is best effort; a read-only config dir must not block commands.
		log, flush = logging.Nop(), func() {}
	}
	a.log = log.With(zap.String("cmd", cmd.CommandPath()))
	a.flushLog = flush
	return nil
}

func (a *App) nodeURL() string {
	if v := strings.TrimSpace(a.NodeURL); v != "" {
		return v
	}
	if a.cfg != nil && strings.TrimSpace(a.cfg.NodeURL) != "" {
		return strings.TrimSpace(a.cfg.NodeURL)
	}
	return docnet.DefaultNodeURL
}

func (a *App) timeout() time.Duration {
	if a.Timeout > 0 {
		return a.Timeout
	}
	return a.cfg.Timeout()
}

func (a *App) logger() *zap.Logger {
	if a.log == nil {
		return zap.NewNop()
	}
	return a.log
}

func runTUI(cmd *cobra.Command, app *App) error {
	env, err := app.env()
	if err != nil {
		return writeErr(cmd, err)
	}
	// A missing seed is fine here; the TUI asks for one.
	seed, err := app.resolveSeed(false)
	if err != nil {
		return writeErr(cmd, err)
	}
	return tui.Run(tui.Options{
		Env:     env,
		Seed:    seed,
		Timeout: app.timeout(),
		State:   store.Store{Dir: app.ConfigDir},
		Glyphs:  app.cfg.Glyphs(),
		Logger:  app.logger(),
	})
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	// Text output shows the payload without the envelope.
	if env, ok := v.(map[string]any); ok && app.Format == "text" {
		if data, ok := env["data"]; ok {
			v = data
		}
	}
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
