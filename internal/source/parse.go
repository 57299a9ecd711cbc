package source

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// migrationFileRegex matches files like 001_init.up.sql, 20240101_add_users.down.sql, etc.
var migrationFileRegex = regexp.MustCompile(`^([0-9]+)_(.*)\.([a-zA-Z]+)\.([a-zA-Z0-9]+)$`)

// ErrParse reports a filename that does not follow the
// <version>_<description>.<direction>.<ext> convention.
var ErrParse = errors.New("no match for migration filename pattern")

// ParsedName is the decomposition of a migration filename.
type ParsedName struct {
	Version     int64
	Description string
	Direction   Direction
	Ext         string
}

// ParseName decomposes a migration filename. The direction token is matched
// case-insensitively; underscores in the description are preserved
// (DisplayDescription turns them into spaces).
func ParseName(name string) (ParsedName, error) {
	m := migrationFileRegex.FindStringSubmatch(name)
	if len(m) == 0 {
		return ParsedName{}, fmt.Errorf("%q: %w", name, ErrParse)
	}
	version, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return ParsedName{}, fmt.Errorf("%q: %w", name, ErrParse)
	}
	var dir Direction
	switch strings.ToLower(m[3]) {
	case "up":
		dir = DirectionUp
	case "down":
		dir = DirectionDown
	default:
		return ParsedName{}, fmt.Errorf("%q: unknown direction %q: %w", name, m[3], ErrParse)
	}
	return ParsedName{
		Version:     version,
		Description: m[2],
		Direction:   dir,
		Ext:         m[4],
	}, nil
}

// DisplayDescription renders a parsed description for operators.
func DisplayDescription(desc string) string {
	return strings.ReplaceAll(desc, "_", " ")
}
