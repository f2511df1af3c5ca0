package fstree_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/knightos/genkfs/fstree"
)

func TestCollect(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmp, "var", "log"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "boot"), []byte("kernel"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "var", "settings"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("../boot", filepath.Join(tmp, "var", "kernel")); err != nil {
		t.Fatal(err)
	}

	got, err := fstree.Collect(tmp)
	if err != nil {
		t.Fatal(err)
	}

	want := &fstree.Dir{
		Children: []fstree.Node{
			&fstree.File{Name: "boot", Data: []byte("kernel")},
			&fstree.Dir{
				Name: "var",
				Children: []fstree.Node{
					&fstree.Symlink{Name: "kernel", Target: "../boot"},
					&fstree.Dir{Name: "log"},
					&fstree.File{Name: "settings", Data: []byte("x")},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected tree: diff (-want +got):\n%s", diff)
	}
}

func TestCollectOrdersSiblingsByName(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	// Create in non-sorted order; collection order must not depend on it.
	for _, name := range []string{"zebra", "apple", "Mango", "10"} {
		if err := os.WriteFile(filepath.Join(tmp, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	root, err := fstree.Collect(tmp)
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, child := range root.Children {
		names = append(names, child.NodeName())
	}
	want := []string{"10", "Mango", "apple", "zebra"} // byte-wise order
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("unexpected order: diff (-want +got):\n%s", diff)
	}
}

func TestCollectMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := fstree.Collect(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, fstree.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestCollectRootIsFile(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "plain")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := fstree.Collect(path)
	if !errors.Is(err, fstree.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestCollectRejectsOversizedFile(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "huge")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	// One byte past the 24-bit length field; sparse, so cheap to create.
	if err := os.Truncate(path, 0xFFFFFF+1); err != nil {
		t.Fatal(err)
	}

	_, err := fstree.Collect(tmp)
	if !errors.Is(err, fstree.ErrFileTooLarge) {
		t.Fatalf("got %v, want ErrFileTooLarge", err)
	}
}
