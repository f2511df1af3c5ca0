package rom_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/knightos/genkfs/kfs"
	"github.com/knightos/genkfs/rom"
)

func writeROM(t *testing.T, size int, fill byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.rom")
	if err := os.WriteFile(path, bytes.Repeat([]byte{fill}, size), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadApplyCommit(t *testing.T) {
	t.Parallel()

	path := writeROM(t, 4*kfs.PageLength, 0x11)
	img, err := rom.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if img.Size() != 4*kfs.PageLength {
		t.Fatalf("size = %d, want %d", img.Size(), 4*kfs.PageLength)
	}

	if err := img.Apply([]kfs.Write{{Off: 0x100, Data: []byte("hello")}}); err != nil {
		t.Fatal(err)
	}
	if err := img.Commit(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got[0x100:0x105], []byte("hello")) {
		t.Fatalf("committed bytes = %x", got[0x100:0x105])
	}
	// Bytes around the write keep the loaded ROM's content.
	if got[0xFF] != 0x11 || got[0x105] != 0x11 {
		t.Fatal("commit disturbed bytes outside the write")
	}
}

func TestApplyOutOfBounds(t *testing.T) {
	t.Parallel()

	img, err := rom.Load(writeROM(t, kfs.PageLength, 0))
	if err != nil {
		t.Fatal(err)
	}
	if err := img.Apply([]kfs.Write{{Off: kfs.PageLength - 1, Data: []byte{1, 2}}}); err == nil {
		t.Fatal("expected error for a write past the image end")
	}
}

func TestLoadMissingROM(t *testing.T) {
	t.Parallel()

	if _, err := rom.Load(filepath.Join(t.TempDir(), "missing.rom")); err == nil {
		t.Fatal("expected error for a missing ROM")
	}
}

func TestCommitDoesNotTouchTargetUntilDone(t *testing.T) {
	t.Parallel()

	path := writeROM(t, kfs.PageLength, 0x22)
	img, err := rom.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := img.Apply([]kfs.Write{{Off: 0, Data: []byte{0x33}}}); err != nil {
		t.Fatal(err)
	}

	// Before Commit the file on disk is untouched.
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0x22 {
		t.Fatal("Apply modified the ROM before Commit")
	}

	if err := img.Commit(); err != nil {
		t.Fatal(err)
	}
	got, err = os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0x33 {
		t.Fatal("Commit did not persist the applied write")
	}

	// No temporary files may remain next to the ROM.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("leftover files after Commit: %v", entries)
	}
}
