package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

const (
	defaultTimeoutSeconds = 30

	DefaultSeedFileName        = "seed"
	DefaultLogFileName         = "tilenotes.log"
	DefaultDefinitionsFileName = "definitions.json"
)

// GlobalConfig is ~/.tilenotes/config.json. Comments are allowed when reading.
type GlobalConfig struct {
	// NodeURL is the document network node. Empty means the built-in default.
	NodeURL string `json:"nodeURL,omitempty"`

	// SeedFile holds the identity seed (hex, or age-encrypted). Relative paths resolve
	// against the config dir.
	SeedFile string `json:"seedFile,omitempty"`

	LogFile string `json:"logFile,omitempty"`

	// TimeoutSeconds bounds each network operation.
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`

	// DefinitionsFile is written by bootstrap and names the notes definition and schemas.
	DefinitionsFile string `json:"definitionsFile,omitempty"`

	TUI *TUIConfig `json:"tui,omitempty"`
}

type TUIConfig struct {
	// Glyphs selects the glyph set ("unicode" or "ascii").
	Glyphs string `json:"glyphs,omitempty"`
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.tilenotes).
	if v := strings.TrimSpace(os.Getenv("TILENOTES_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tilenotes"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func LoadConfig() (*GlobalConfig, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(dir)
}

// LoadConfigFrom reads config.json in dir; a missing file yields an empty config.
func LoadConfigFrom(dir string) (*GlobalConfig, error) {
	path := filepath.Join(dir, "config.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(jsonc.ToJSON(b), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

// writeWithBackup keeps a copy of the previous file at path+".bak" before replacing it.
func writeWithBackup(path string, b []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := filepath.Base(path)
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomicWriteFile(dir, base+".bak.*.tmp", path+".bak", prev, 0o644)
	}
	return atomicWriteFile(dir, base+".*.tmp", path, b, perm)
}

func SaveConfig(cfg *GlobalConfig) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return SaveConfigTo(dir, cfg)
}

func SaveConfigTo(dir string, cfg *GlobalConfig) error {
	path := filepath.Join(dir, "config.json")
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return writeWithBackup(path, b, 0o600)
}

func (c *GlobalConfig) Timeout() time.Duration {
	if c == nil || c.TimeoutSeconds <= 0 {
		return defaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *GlobalConfig) SeedPath(dir string) string {
	return resolvePath(dir, c.fileOr(func(c *GlobalConfig) string { return c.SeedFile }, DefaultSeedFileName))
}

func (c *GlobalConfig) LogPath(dir string) string {
	return resolvePath(dir, c.fileOr(func(c *GlobalConfig) string { return c.LogFile }, DefaultLogFileName))
}

func (c *GlobalConfig) DefinitionsPath(dir string) string {
	return resolvePath(dir, c.fileOr(func(c *GlobalConfig) string { return c.DefinitionsFile }, DefaultDefinitionsFileName))
}

func (c *GlobalConfig) Glyphs() string {
	if c == nil || c.TUI == nil {
		return ""
	}
	return c.TUI.Glyphs
}

func (c *GlobalConfig) fileOr(get func(*GlobalConfig) string, def string) string {
	if c == nil {
		return def
	}
	if v := strings.TrimSpace(get(c)); v != "" {
		return v
	}
	return def
}

func resolvePath(dir, p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
