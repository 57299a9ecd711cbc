package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/loykin/schemarun/internal/driver"
)

func noopAction(context.Context, driver.Driver) error { return nil }

func mustMigration(t *testing.T, v int64) *Migration {
	t.Helper()
	m, err := New(v, "m", noopAction, noopAction)
	if err != nil {
		t.Fatalf("new migration %d: %v", v, err)
	}
	return m
}

func mustRegistry(t *testing.T, versions ...int64) *Registry {
	t.Helper()
	ms := make([]*Migration, 0, len(versions))
	for _, v := range versions {
		ms = append(ms, mustMigration(t, v))
	}
	reg, err := NewRegistry(ms)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func versionsOf(ms []*Migration) []int64 {
	out := make([]int64, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Version)
	}
	return out
}

func equalVersions(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewRegistry_DuplicateVersion(t *testing.T) {
	ms := []*Migration{mustMigration(t, 1), mustMigration(t, 2), mustMigration(t, 2)}
	_, err := NewRegistry(ms)
	var dup *DuplicateVersionError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateVersionError, got %v", err)
	}
	if dup.Version != 2 {
		t.Fatalf("expected duplicate version 2, got %d", dup.Version)
	}
}

func TestNewRegistry_SortsUnorderedInput(t *testing.T) {
	reg := mustRegistry(t, 9, 1, 5)
	got := versionsOf(reg.All())
	if !equalVersions(got, []int64{1, 5, 9}) {
		t.Fatalf("expected ascending order, got %v", got)
	}
}

func TestNextAfter(t *testing.T) {
	reg := mustRegistry(t, 1, 5, 9)

	got := versionsOf(reg.NextAfter(driver.NilVersion, 0))
	if !equalVersions(got, []int64{1, 5, 9}) {
		t.Fatalf("from nil: got %v", got)
	}
	got = versionsOf(reg.NextAfter(1, 0))
	if !equalVersions(got, []int64{5, 9}) {
		t.Fatalf("after 1: got %v", got)
	}
	got = versionsOf(reg.NextAfter(1, 1))
	if !equalVersions(got, []int64{5}) {
		t.Fatalf("after 1 limit 1: got %v", got)
	}
	// versions between entries walk forward by numeric comparison
	got = versionsOf(reg.NextAfter(3, 0))
	if !equalVersions(got, []int64{5, 9}) {
		t.Fatalf("after 3: got %v", got)
	}
	if len(reg.NextAfter(9, 0)) != 0 {
		t.Fatalf("after last: expected empty")
	}
}

func TestAtOrBelow(t *testing.T) {
	reg := mustRegistry(t, 1, 5, 9)

	got := versionsOf(reg.AtOrBelow(9, 0))
	if !equalVersions(got, []int64{9, 5, 1}) {
		t.Fatalf("at or below 9: got %v", got)
	}
	got = versionsOf(reg.AtOrBelow(5, 1))
	if !equalVersions(got, []int64{5}) {
		t.Fatalf("at or below 5 limit 1: got %v", got)
	}
	got = versionsOf(reg.AtOrBelow(4, 0))
	if !equalVersions(got, []int64{1}) {
		t.Fatalf("at or below 4: got %v", got)
	}
}

func TestPreviousOf(t *testing.T) {
	reg := mustRegistry(t, 1, 5, 9)

	if got := reg.PreviousOf(1); got != driver.NilVersion {
		t.Fatalf("previous of first: expected nil, got %d", got)
	}
	if got := reg.PreviousOf(9); got != 5 {
		t.Fatalf("previous of 9: expected 5, got %d", got)
	}
	if got := reg.PreviousOf(7); got != 5 {
		t.Fatalf("previous of absent 7: expected 5, got %d", got)
	}
}

func TestCountBetween(t *testing.T) {
	reg := mustRegistry(t, 1, 5, 9)

	if n := reg.CountBetween(driver.NilVersion, 9); n != 3 {
		t.Fatalf("(nil, 9]: expected 3, got %d", n)
	}
	if n := reg.CountBetween(1, 9); n != 2 {
		t.Fatalf("(1, 9]: expected 2, got %d", n)
	}
	if n := reg.CountBetween(1, 4); n != 0 {
		t.Fatalf("(1, 4]: expected 0, got %d", n)
	}
	if n := reg.CountBetween(9, 9); n != 0 {
		t.Fatalf("(9, 9]: expected 0, got %d", n)
	}
}

func TestNew_RejectsNonPositiveVersion(t *testing.T) {
	if _, err := New(0, "zero", noopAction, nil); err == nil {
		t.Fatalf("expected error for version 0")
	}
	if _, err := New(-3, "neg", noopAction, nil); err == nil {
		t.Fatalf("expected error for negative version")
	}
}
