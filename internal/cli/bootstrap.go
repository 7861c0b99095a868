package cli

import (
	"context"
	"fmt"

	"tilenotes/internal/did"
	"tilenotes/internal/docnet"
	"tilenotes/internal/model"
	"tilenotes/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// bootstrapResult is what bootstrap publishes and writes to the definitions file.
type bootstrapResult struct {
	Path        string            `json:"path"`
	Definitions model.Definitions `json:"definitions"`
}

func newBootstrapCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Publish the note schemas and the notes definition, then write the definitions file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.cfg.DefinitionsPath(app.ConfigDir)
			if !force {
				if existing, err := store.LoadDefinitions(path); err == nil {
					return writeOut(cmd, app, map[string]any{"data": bootstrapResult{Path: path, Definitions: existing}})
				}
			}
			seed, err := app.resolveSeed(true)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 4*app.timeout())
			defer cancel()

			defs, err := publishDefinitions(ctx, app.nodeURL(), seed, app.logger())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := store.SaveDefinitions(path, defs); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": bootstrapResult{Path: path, Definitions: defs}})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Publish again even if a definitions file exists")
	return cmd
}

// publishDefinitions creates the Note and NotesList schema documents and the "notes"
// definition that points at the NotesList schema commit.
func publishDefinitions(ctx context.Context, nodeURL string, seed []byte, log *zap.Logger) (model.Definitions, error) {
	key, err := did.FromSeed(seed)
	if err != nil {
		return model.Definitions{}, err
	}
	c, err := docnet.NewClient(nodeURL, docnet.WithLogger(log))
	if err != nil {
		return model.Definitions{}, err
	}
	if err := c.Authenticate(ctx, key); err != nil {
		return model.Definitions{}, err
	}
	meta := docnet.Metadata{Controllers: []string{key.DID()}}

	noteSchema, err := c.Create(ctx, model.NoteSchema(), meta)
	if err != nil {
		return model.Definitions{}, fmt.Errorf("publish Note schema: %w", err)
	}
	listSchema, err := c.Create(ctx, model.NotesListSchema(), meta)
	if err != nil {
		return model.Definitions{}, fmt.Errorf("publish NotesList schema: %w", err)
	}
	def, err := c.Create(ctx, model.Definition{
		Name:        "notes",
		Description: "Simple text notes",
		Schema:      listSchema.CommitID().URL(),
	}, meta)
	if err != nil {
		return model.Definitions{}, fmt.Errorf("publish notes definition: %w", err)
	}

	defs := model.Definitions{
		Definitions: map[string]string{model.NotesAlias: def.ID().String()},
		Schemas: map[string]string{
			model.NoteSchemaName:      noteSchema.CommitID().URL(),
			model.NotesListSchemaName: listSchema.CommitID().URL(),
		},
	}
	log.Info("definitions published",
		zap.String("did", key.DID()),
		zap.String("definition", def.ID().String()),
	)
	return defs, nil
}
