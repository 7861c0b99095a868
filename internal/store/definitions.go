package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"tilenotes/internal/model"

	"github.com/tidwall/jsonc"
)

// ErrNoDefinitions means bootstrap has not been run for this config dir.
var ErrNoDefinitions = errors.New("definitions file not found; run `tilenotes bootstrap`")

func LoadDefinitions(path string) (model.Definitions, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Definitions{}, ErrNoDefinitions
		}
		return model.Definitions{}, err
	}
	var defs model.Definitions
	if err := json.Unmarshal(jsonc.ToJSON(b), &defs); err != nil {
		return model.Definitions{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := defs.Validate(); err != nil {
		return model.Definitions{}, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

func SaveDefinitions(path string, defs model.Definitions) error {
	if err := defs.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(defs, "", "  ")
	if err != nil {
		return err
	}
	return writeWithBackup(path, b, 0o644)
}
