package cli

import (
	"path/filepath"

	"tilenotes/internal/store"

	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change configuration",
	}
	cmd.AddCommand(newConfigPathCmd(app))
	cmd.AddCommand(newConfigShowCmd(app))
	cmd.AddCommand(newConfigSetCmd(app))
	return cmd
}

func newConfigPathCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"path": filepath.Join(app.ConfigDir, "config.json"),
			}})
		},
	}
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"configDir":       app.ConfigDir,
				"nodeURL":         app.nodeURL(),
				"seedFile":        app.cfg.SeedPath(app.ConfigDir),
				"logFile":         app.cfg.LogPath(app.ConfigDir),
				"definitionsFile": app.cfg.DefinitionsPath(app.ConfigDir),
				"timeout":         app.timeout().String(),
				"glyphs":          app.cfg.Glyphs(),
			}})
		},
	}
}

func newConfigSetCmd(app *App) *cobra.Command {
	var nodeURL string
	var timeoutSeconds int
	var glyphs string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Persist config values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			if cfg == nil {
				cfg = &store.GlobalConfig{}
			}
			if cmd.Flags().Changed("node-url") {
				cfg.NodeURL = nodeURL
			}
			if cmd.Flags().Changed("timeout-seconds") {
				cfg.TimeoutSeconds = timeoutSeconds
			}
			if cmd.Flags().Changed("glyphs") {
				if cfg.TUI == nil {
					cfg.TUI = &store.TUIConfig{}
				}
				cfg.TUI.Glyphs = glyphs
			}
			if err := store.SaveConfigTo(app.ConfigDir, cfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": cfg})
		},
	}

	cmd.Flags().StringVar(&nodeURL, "node-url", "", "Node URL to store")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout-seconds", 0, "Network timeout in seconds")
	cmd.Flags().StringVar(&glyphs, "glyphs", "", "TUI glyphs (unicode|ascii)")
	return cmd
}
