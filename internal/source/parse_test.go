package source

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParseName_Valid(t *testing.T) {
	cases := []struct {
		in      string
		version int64
		desc    string
		dir     Direction
		ext     string
	}{
		{"001_init.up.sql", 1, "init", DirectionUp, "sql"},
		{"001_init.down.sql", 1, "init", DirectionDown, "sql"},
		{"20240101120000_add_users_table.up.sql", 20240101120000, "add_users_table", DirectionUp, "sql"},
		{"42_snake_case_name.UP.sql", 42, "snake_case_name", DirectionUp, "sql"},
		{"7_seed.down.cql", 7, "seed", DirectionDown, "cql"},
	}
	for _, c := range cases {
		got, err := ParseName(c.in)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", c.in, err)
		}
		if got.Version != c.version || got.Description != c.desc || got.Direction != c.dir || got.Ext != c.ext {
			t.Fatalf("%s: got %+v", c.in, got)
		}
	}
}

func TestParseName_Invalid(t *testing.T) {
	for _, in := range []string{
		"init.up.sql",         // no version
		"001-init.up.sql",     // wrong separator
		"001_init.sideways.sql", // bad direction
		"001_init.sql",        // no direction
		"README.md",
	} {
		if _, err := ParseName(in); !errors.Is(err, ErrParse) {
			t.Fatalf("%s: expected ErrParse, got %v", in, err)
		}
	}
}

func TestDisplayDescription(t *testing.T) {
	if got := DisplayDescription("add_users_table"); got != "add users table" {
		t.Fatalf("got %q", got)
	}
}

func TestScript_BodyReadOnce(t *testing.T) {
	reads := 0
	sc := NewScript(1, "one", DirectionUp, "mem", func() (io.ReadCloser, error) {
		reads++
		return io.NopCloser(strings.NewReader("SELECT 1")), nil
	})
	for i := 0; i < 3; i++ {
		body, err := sc.Body()
		if err != nil {
			t.Fatalf("body: %v", err)
		}
		if body != "SELECT 1" {
			t.Fatalf("got %q", body)
		}
	}
	if reads != 1 {
		t.Fatalf("expected a single provider read, got %d", reads)
	}
}
