package cli

import (
	"errors"
	"io"
	"os"
	"strings"

	"tilenotes/internal/docnet"
	"tilenotes/internal/model"

	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate and report the identity and note count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.withSession(cmd.Context(), func(r *runner, notes []model.NoteItem, sess *docnet.Session) error {
				return writeOut(cmd, app, map[string]any{"data": map[string]any{
					"did":     sess.DID,
					"nodeURL": app.nodeURL(),
					"notes":   len(notes),
				}})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newNotesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "List, read, create and edit notes",
	}
	cmd.AddCommand(newNotesListCmd(app))
	cmd.AddCommand(newNotesShowCmd(app))
	cmd.AddCommand(newNotesNewCmd(app))
	cmd.AddCommand(newNotesEditCmd(app))
	return cmd
}

func newNotesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List notes from the notes index, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.withSession(cmd.Context(), func(r *runner, notes []model.NoteItem, sess *docnet.Session) error {
				if notes == nil {
					notes = []model.NoteItem{}
				}
				return writeOut(cmd, app, map[string]any{
					"data": notes,
					"meta": map[string]any{"did": sess.DID, "count": len(notes)},
				})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newNotesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <stream-id>",
		Short: "Load a note document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := model.ParseStreamID(args[0]); err != nil {
				return writeErr(cmd, err)
			}
			err := app.withSession(cmd.Context(), func(r *runner, _ []model.NoteItem, _ *docnet.Session) error {
				entry, err := r.open(args[0])
				if err != nil {
					return err
				}
				v, err := storedNoteView(entry)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": v})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newNotesNewCmd(app *App) *cobra.Command {
	var title string
	var text string
	var textFile string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a note and add it to the notes index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			title = strings.TrimSpace(title)
			if err := model.ValidateNoteTitle(title); err != nil {
				return writeErr(cmd, err)
			}
			body, err := readText(cmd, text, textFile)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := model.ValidateNoteText(body); err != nil {
				return writeErr(cmd, err)
			}
			err = app.withSession(cmd.Context(), func(r *runner, _ []model.NoteItem, _ *docnet.Session) error {
				id, err := r.saveDraft(title, body)
				if err != nil {
					return err
				}
				entry, ok := storedEntry(r, id)
				if !ok {
					return errNotFound("note", id)
				}
				v, err := storedNoteView(entry)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": v})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Note title (required)")
	cmd.Flags().StringVar(&text, "text", "", "Note text")
	cmd.Flags().StringVar(&textFile, "text-file", "", "Read note text from a file ('-' for stdin)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newNotesEditCmd(app *App) *cobra.Command {
	var text string
	var textFile string

	cmd := &cobra.Command{
		Use:   "edit <stream-id>",
		Short: "Replace a note's text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := model.ParseStreamID(args[0]); err != nil {
				return writeErr(cmd, err)
			}
			if !cmd.Flags().Changed("text") && textFile == "" {
				return writeErr(cmd, errors.New("missing --text or --text-file"))
			}
			body, err := readText(cmd, text, textFile)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := model.ValidateNoteText(body); err != nil {
				return writeErr(cmd, err)
			}
			err = app.withSession(cmd.Context(), func(r *runner, _ []model.NoteItem, _ *docnet.Session) error {
				entry, err := r.open(args[0])
				if err != nil {
					return err
				}
				if err := r.saveNote(entry, body); err != nil {
					return err
				}
				entry, _ = storedEntry(r, entry.Doc.ID().String())
				v, err := storedNoteView(entry)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": v})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "New note text")
	cmd.Flags().StringVar(&textFile, "text-file", "", "Read note text from a file ('-' for stdin)")
	return cmd
}

func readText(cmd *cobra.Command, text, file string) (string, error) {
	switch file {
	case "":
		return text, nil
	case "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	default:
		b, err := os.ReadFile(file)
		return string(b), err
	}
}
