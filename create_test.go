package schemarun

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateMigration_Sequential(t *testing.T) {
	dir := t.TempDir()

	up, down, err := CreateMigration(CreateOptions{Name: "add users", Dir: dir, Sequential: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(up) != "000001_add_users.up.sql" {
		t.Fatalf("up name: got %s", filepath.Base(up))
	}
	if filepath.Base(down) != "000001_add_users.down.sql" {
		t.Fatalf("down name: got %s", filepath.Base(down))
	}
	for _, p := range []string{up, down} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
	}

	// next sequential pair continues the numbering
	up2, _, err := CreateMigration(CreateOptions{Name: "add articles", Dir: dir, Sequential: true})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if filepath.Base(up2) != "000002_add_articles.up.sql" {
		t.Fatalf("second up name: got %s", filepath.Base(up2))
	}
}

func TestCreateMigration_Timestamp(t *testing.T) {
	dir := t.TempDir()
	up, _, err := CreateMigration(CreateOptions{Name: "init", Dir: dir})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	base := filepath.Base(up)
	version, _, ok := strings.Cut(base, "_")
	if !ok || len(version) != 14 {
		t.Fatalf("expected 14-digit timestamp version, got %s", base)
	}
}

func TestCreateMigration_RequiresName(t *testing.T) {
	if _, _, err := CreateMigration(CreateOptions{Dir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestCreateMigration_CustomExt(t *testing.T) {
	dir := t.TempDir()
	up, _, err := CreateMigration(CreateOptions{Name: "seed", Dir: dir, Ext: "cql", Sequential: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(up, ".up.cql") {
		t.Fatalf("got %s", up)
	}
}
