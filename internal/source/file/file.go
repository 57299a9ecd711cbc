package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/loykin/schemarun/internal/source"
)

// Source loads migration scripts from a directory of
// <version>_<description>.{up|down}.<ext> files. Bodies are read lazily.
type Source struct {
	Dir string
}

// New creates a filesystem source rooted at dir. A file:// prefix is accepted
// and stripped so the CLI can pass source URLs through unchanged.
func New(dir string) *Source {
	dir = strings.TrimPrefix(dir, "file://")
	return &Source{Dir: dir}
}

// Load scans the directory once and groups scripts by version. Files that do
// not match the naming convention are skipped; malformed catalogs (duplicate
// direction per version, down without up) fail with a source error.
func (s *Source) Load(_ context.Context) ([]*source.Pair, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, &source.Error{Err: err}
	}

	byVersion := map[int64]*source.Pair{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		parsed, err := source.ParseName(name)
		if err != nil {
			if errors.Is(err, source.ErrParse) {
				continue
			}
			return nil, &source.Error{Err: err}
		}
		path := filepath.Join(s.Dir, name)
		sc := source.NewScript(parsed.Version, parsed.Description, parsed.Direction, path, openFunc(path))

		p := byVersion[parsed.Version]
		if p == nil {
			p = &source.Pair{Version: parsed.Version, Description: parsed.Description}
			byVersion[parsed.Version] = p
		}
		switch parsed.Direction {
		case source.DirectionUp:
			if p.Up != nil {
				return nil, &source.Error{Err: &source.DuplicatePairError{
					Version: parsed.Version, Direction: source.DirectionUp, PathA: p.Up.Path, PathB: path,
				}}
			}
			p.Up = sc
			p.Description = parsed.Description
		case source.DirectionDown:
			if p.Down != nil {
				return nil, &source.Error{Err: &source.DuplicatePairError{
					Version: parsed.Version, Direction: source.DirectionDown, PathA: p.Down.Path, PathB: path,
				}}
			}
			p.Down = sc
		}
	}

	pairs := make([]*source.Pair, 0, len(byVersion))
	for _, p := range byVersion {
		if p.Up == nil {
			return nil, &source.Error{Err: &source.MissingUpError{Version: p.Version, Path: p.Down.Path}}
		}
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Version < pairs[j].Version })
	return pairs, nil
}

func openFunc(path string) source.ContentFunc {
	return func() (io.ReadCloser, error) {
		clean := filepath.Clean(path)
		// #nosec G304 -- path comes from controlled directory listing of migration files
		return os.Open(clean)
	}
}
