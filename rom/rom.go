// Package rom loads a ROM image into memory, applies a build's writes
// to it and commits the result. Commits to regular files go through a
// temporary file and a rename, so a failed build never leaves a
// partially written ROM behind. Writing straight to a block device is
// supported; its size is discovered through the kernel.
package rom

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/knightos/genkfs/kfs"
)

// Image is a ROM held in memory. The kernel pages of the loaded ROM are
// preserved in the buffer; a build only overlays the filesystem region.
type Image struct {
	path   string
	mode   fs.FileMode
	buf    []byte
	device bool
}

// Load reads the ROM at path into memory. The ROM must already exist:
// its length defines the image geometry.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("unable to stat %s: %w", path, err)
	}

	img := &Image{path: path, mode: info.Mode()}
	if info.Mode().IsRegular() {
		img.buf, err = io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return img, nil
	}

	size, err := deviceSize(f)
	if err != nil {
		return nil, fmt.Errorf("unable to size %s: %w", path, err)
	}
	img.device = true
	img.buf = make([]byte, size)
	if _, err := io.ReadFull(f, img.buf); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return img, nil
}

// Size returns the ROM length in bytes.
func (img *Image) Size() int64 { return int64(len(img.buf)) }

// Bytes returns the in-memory image. Callers must not hold the slice
// across a Commit.
func (img *Image) Bytes() []byte { return img.buf }

// Apply overlays encoder writes onto the image.
func (img *Image) Apply(writes []kfs.Write) error {
	return kfs.Apply(img.buf, writes)
}

// Commit writes the image back. Regular files are replaced atomically
// via a rename; block devices are rewritten in place and synced.
func (img *Image) Commit() error {
	if img.device {
		return img.commitDevice()
	}

	// The temporary file lives next to the target so the rename cannot
	// cross filesystems.
	tmp, err := os.CreateTemp(filepath.Dir(img.path), ".genkfs-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", img.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(img.buf); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", img.path, err)
	}
	if err := tmp.Chmod(img.mode.Perm()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", img.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", img.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", img.path, err)
	}
	if err := os.Rename(tmp.Name(), img.path); err != nil {
		return fmt.Errorf("writing %s: %w", img.path, err)
	}
	return nil
}

func (img *Image) commitDevice() error {
	f, err := os.OpenFile(img.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("writing %s: %w", img.path, err)
	}
	if _, err := f.Write(img.buf); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", img.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", img.path, err)
	}
	return f.Close()
}
