package main

import (
	"os"
	"strings"

	"tilenotes/internal/cli"
)

func isStreamURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "ceramic://") && len(s) > len("ceramic://")
}

// rewriteDirectNoteArgs turns `tilenotes ceramic://<id>` into `tilenotes notes show ceramic://<id>`.
// Persistent flags may come first, so the first positional token is what counts.
func rewriteDirectNoteArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--config-dir": true,
		"--node":       true,
		"--seed":       true,
		"--timeout":    true,
		"--format":     true,
	}

	insert := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "notes", "show")
		return append(out, argv[i:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			// After "--" cobra stops resolving subcommands, so they go in front of it.
			if i+1 < len(argv) && isStreamURL(argv[i+1]) {
				return insert(i)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}
		if isStreamURL(a) {
			return insert(i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDirectNoteArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
