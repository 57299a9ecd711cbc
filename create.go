package schemarun

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/loykin/schemarun/internal/constants"
	isrc "github.com/loykin/schemarun/internal/source"
)

// CreateOptions controls migration scaffolding.
type CreateOptions struct {
	// Name becomes the description part of the filename; spaces are folded
	// to underscores.
	Name string
	// Dir is the migration directory; created if missing.
	Dir string
	// Ext is the script extension without the dot; defaults to sql.
	Ext string
	// Sequential numbers the new pair one past the highest existing version
	// instead of using a UTC timestamp.
	Sequential bool
	// SeqDigits pads sequential versions with leading zeros; defaults to 6.
	SeqDigits int
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// CreateMigration writes an empty up/down script pair and returns both paths.
func CreateMigration(opts CreateOptions) (up string, down string, err error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return "", "", errors.New("migration name is required")
	}
	name = invalidNameChars.ReplaceAllString(strings.ReplaceAll(name, " ", "_"), "")
	ext := opts.Ext
	if ext == "" {
		ext = constants.DefaultMigrationExt
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", "", err
	}

	var version string
	if opts.Sequential {
		next, err := nextSequence(dir)
		if err != nil {
			return "", "", err
		}
		digits := opts.SeqDigits
		if digits <= 0 {
			digits = 6
		}
		version = fmt.Sprintf("%0*d", digits, next)
	} else {
		version = time.Now().UTC().Format("20060102150405")
	}

	up = filepath.Join(dir, fmt.Sprintf("%s_%s.up.%s", version, name, ext))
	down = filepath.Join(dir, fmt.Sprintf("%s_%s.down.%s", version, name, ext))
	for _, p := range []string{up, down} {
		if _, err := os.Stat(p); err == nil {
			return "", "", fmt.Errorf("migration file already exists: %s", p)
		}
		if err := os.WriteFile(p, nil, 0o600); err != nil {
			return "", "", err
		}
	}
	return up, down, nil
}

func nextSequence(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var max int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		parsed, err := isrc.ParseName(e.Name())
		if err != nil {
			continue
		}
		if parsed.Version > max {
			max = parsed.Version
		}
	}
	return max + 1, nil
}
