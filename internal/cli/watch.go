package cli

import (
	"encoding/json"

	"tilenotes/internal/docnet"
	"tilenotes/internal/model"

	"github.com/spf13/cobra"
)

func newWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <stream-id>",
		Short: "Print a document's state after every commit (JSON lines)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseStreamID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := docnet.NewClient(app.nodeURL(), docnet.WithLogger(app.logger()))
			if err != nil {
				return writeErr(cmd, err)
			}
			states, err := c.Watch(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for st := range states {
				if err := enc.Encode(map[string]any{"data": st}); err != nil {
					return writeErr(cmd, err)
				}
			}
			return nil
		},
	}
}
