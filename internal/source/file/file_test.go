package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/loykin/schemarun/internal/source"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestLoad_PairsAndOrdering(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"2_second.up.sql":   "CREATE TABLE b (id int);",
		"2_second.down.sql": "DROP TABLE b;",
		"1_first.up.sql":    "CREATE TABLE a (id int);",
		"1_first.down.sql":  "DROP TABLE a;",
		"notes.txt":         "ignored",
	})

	pairs, err := New(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Version != 1 || pairs[1].Version != 2 {
		t.Fatalf("expected ascending versions, got %d, %d", pairs[0].Version, pairs[1].Version)
	}
	if pairs[0].Description != "first" {
		t.Fatalf("description: got %q", pairs[0].Description)
	}
	if pairs[0].Down == nil {
		t.Fatalf("expected down script for version 1")
	}

	body, err := pairs[0].Up.Body()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if body != "CREATE TABLE a (id int);" {
		t.Fatalf("got body %q", body)
	}
}

func TestLoad_MissingDownIsAllowed(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"1_only_up.up.sql": "SELECT 1;"})

	pairs, err := New(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Down != nil {
		t.Fatalf("expected a single pair without down, got %+v", pairs)
	}
}

func TestLoad_DuplicateDirectionFails(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"1_a.up.sql": "SELECT 1;",
		"1_b.up.sql": "SELECT 2;",
	})

	_, err := New(dir).Load(context.Background())
	var srcErr *source.Error
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected source.Error, got %v", err)
	}
	var dup *source.DuplicatePairError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicatePairError, got %v", err)
	}
	if dup.Version != 1 || dup.Direction != source.DirectionUp {
		t.Fatalf("got %+v", dup)
	}
}

func TestLoad_DownWithoutUpFails(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"3_orphan.down.sql": "DROP TABLE c;"})

	_, err := New(dir).Load(context.Background())
	var missing *source.MissingUpError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingUpError, got %v", err)
	}
	if missing.Version != 3 {
		t.Fatalf("got version %d", missing.Version)
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent")).Load(context.Background())
	var srcErr *source.Error
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected source.Error, got %v", err)
	}
}

func TestNew_StripsFileScheme(t *testing.T) {
	s := New("file:///tmp/migrations")
	if s.Dir != "/tmp/migrations" {
		t.Fatalf("got %q", s.Dir)
	}
}
