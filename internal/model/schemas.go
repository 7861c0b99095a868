package model

// NoteSchema is the JSON schema published for note documents.
func NoteSchema() map[string]any {
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title":   NoteSchemaName,
		"type":    "object",
		"properties": map[string]any{
			"date": map[string]any{
				"type":      "string",
				"format":    "date-time",
				"title":     "date",
				"maxLength": 30,
			},
			"text": map[string]any{
				"type":      "string",
				"title":     "text",
				"maxLength": MaxNoteTextLen,
			},
		},
	}
}

// NotesListSchema is the JSON schema published for the notes index.
func NotesListSchema() map[string]any {
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title":   NotesListSchemaName,
		"type":    "object",
		"properties": map[string]any{
			"notes": map[string]any{
				"type":  "array",
				"title": "notes",
				"items": map[string]any{
					"type":  "object",
					"title": "NoteItem",
					"properties": map[string]any{
						"id": map[string]any{
							"$ref": "#/definitions/CeramicStreamId",
						},
						"title": map[string]any{
							"type":      "string",
							"title":     "title",
							"maxLength": MaxNoteTitleLen,
						},
					},
				},
			},
		},
		"definitions": map[string]any{
			"CeramicStreamId": map[string]any{
				"type":      "string",
				"pattern":   `^ceramic://.+(\\?version=.+)?`,
				"maxLength": MaxStreamURLLen,
			},
		},
	}
}
