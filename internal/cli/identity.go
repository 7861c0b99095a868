package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"tilenotes/internal/did"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newIdentityCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage the identity seed",
	}
	cmd.AddCommand(newIdentityInitCmd(app))
	cmd.AddCommand(newIdentityShowCmd(app))
	return cmd
}

func newIdentityInitCmd(app *App) *cobra.Command {
	var encrypt bool
	var force bool
	var seedHex string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate (or import) a seed and write the seed file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.cfg.SeedPath(app.ConfigDir)
			if _, err := os.Stat(path); err == nil && !force {
				return writeErr(cmd, fmt.Errorf("seed file already exists: %s (use --force to replace)", path))
			}

			var seed []byte
			var err error
			if strings.TrimSpace(seedHex) != "" {
				seed, err = did.ParseSeed(seedHex)
			} else {
				seed, err = did.GenerateSeed()
			}
			if err != nil {
				return writeErr(cmd, err)
			}

			passphrase := ""
			if encrypt {
				passphrase, err = newPassphrase()
				if err != nil {
					return writeErr(cmd, err)
				}
			}
			if err := did.WriteSeedFile(path, seed, passphrase); err != nil {
				return writeErr(cmd, err)
			}
			key, err := did.FromSeed(seed)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"did":       key.DID(),
				"path":      path,
				"encrypted": encrypt,
			}})
		},
	}

	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Encrypt the seed file with a passphrase")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing seed file")
	cmd.Flags().StringVar(&seedHex, "import", "", "Use this hex seed instead of generating one")
	return cmd
}

func newIdentityShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the identity derived from the configured seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := app.resolveSeed(true)
			if err != nil {
				return writeErr(cmd, err)
			}
			key, err := did.FromSeed(seed)
			if err != nil {
				return writeErr(cmd, err)
			}
			source := "file"
			if strings.TrimSpace(app.Seed) != "" {
				source = "flag"
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"did":      key.DID(),
				"source":   source,
				"seedFile": app.cfg.SeedPath(app.ConfigDir),
			}})
		},
	}
}

// newPassphrase reads TILENOTES_PASSPHRASE, or asks twice on the terminal.
func newPassphrase() (string, error) {
	if v := os.Getenv("TILENOTES_PASSPHRASE"); v != "" {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", did.ErrPassphraseRequired
	}
	fmt.Fprint(os.Stderr, "New passphrase: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Repeat passphrase: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passphrases do not match")
	}
	if len(first) == 0 {
		return "", errors.New("empty passphrase")
	}
	return string(first), nil
}
