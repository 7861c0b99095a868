package model

import "errors"

const (
	NotesAlias          = "notes"
	NoteSchemaName      = "Note"
	NotesListSchemaName = "NotesList"
)

// Definitions is the file written by bootstrap and read at startup. It maps directory
// aliases to definition streams and schema names to schema commit URLs.
type Definitions struct {
	Definitions map[string]string `json:"definitions"`
	Schemas     map[string]string `json:"schemas"`
}

func (d Definitions) Validate() error {
	if d.Definitions[NotesAlias] == "" {
		return errors.New("definitions: missing \"notes\" definition")
	}
	if d.Schemas[NoteSchemaName] == "" {
		return errors.New("definitions: missing \"Note\" schema")
	}
	if d.Schemas[NotesListSchemaName] == "" {
		return errors.New("definitions: missing \"NotesList\" schema")
	}
	return nil
}

func (d Definitions) NoteSchema() string { return d.Schemas[NoteSchemaName] }

// Definition is the content of a definition stream.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      string `json:"schema"`
}
