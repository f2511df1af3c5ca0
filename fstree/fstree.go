// Package fstree reads a host directory into the in-memory node tree
// that a KFS build packages. Children are collected in byte-wise name
// order, the order in which the original genkfs tool visits them, so the
// tree fixes the allocation order of every downstream stage. Symbolic
// links are kept as links, never followed.
package fstree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// KFS directory entries carry a 16-bit length whose value includes a
// per-kind overhead on top of the name, and file lengths occupy 24 bits.
// Nodes that cannot be represented are rejected while collecting, never
// truncated.
const (
	dirEntryOverhead     = 6
	fileEntryOverhead    = 9
	symlinkEntryOverhead = 5

	maxEntryLen = 0xFFFF
	maxFileSize = 0xFFFFFF
)

var (
	ErrNotFound     = errors.New("input not found")
	ErrUnreadable   = errors.New("input unreadable")
	ErrNameTooLong  = errors.New("name too long")
	ErrFileTooLarge = errors.New("file too large")
)

// nameFits reports whether an entry name (plus, for symlinks, the target
// text) still fits the 16-bit entry length field.
func nameFits(name, target string, overhead int) bool {
	return len(name)+len(target)+overhead <= maxEntryLen
}

// Node is one entry of the collected tree: *Dir, *File or *Symlink.
type Node interface {
	NodeName() string
}

// Dir is a directory node. Children are sorted byte-wise by name.
type Dir struct {
	Name     string
	Children []Node
}

func (d *Dir) NodeName() string { return d.Name }

// File is a regular file node with its full content.
type File struct {
	Name string
	Data []byte
}

func (f *File) NodeName() string { return f.Name }

// Symlink is a symbolic link node. Target is the literal link text.
type Symlink struct {
	Name   string
	Target string
}

func (s *Symlink) NodeName() string { return s.Name }

// Collect reads the directory at root into a tree. The returned root Dir
// has an empty name; downstream stages only read the tree.
func Collect(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, root)
	}
	return collectDir(root, "")
}

func collectDir(path, name string) (*Dir, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}

	d := &Dir{Name: name}
	// os.ReadDir returns entries sorted by filename, which is the same
	// order the reference tool produces by sorting paths.
	for _, entry := range entries {
		child, err := collectNode(filepath.Join(path, entry.Name()), entry)
		if err != nil {
			return nil, err
		}
		d.Children = append(d.Children, child)
	}
	return d, nil
}

func collectNode(path string, entry fs.DirEntry) (Node, error) {
	name := entry.Name()
	switch {
	case entry.Type()&fs.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
		}
		if !nameFits(name, target, symlinkEntryOverhead) {
			return nil, fmt.Errorf("%w: %s", ErrNameTooLong, path)
		}
		return &Symlink{Name: name, Target: target}, nil

	case entry.IsDir():
		if !nameFits(name, "", dirEntryOverhead) {
			return nil, fmt.Errorf("%w: %s", ErrNameTooLong, path)
		}
		return collectDir(path, name)

	case entry.Type().IsRegular():
		if !nameFits(name, "", fileEntryOverhead) {
			return nil, fmt.Errorf("%w: %s", ErrNameTooLong, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
		}
		if len(data) > maxFileSize {
			return nil, fmt.Errorf("%w: %s is larger than the maximum file size", ErrFileTooLarge, path)
		}
		return &File{Name: name, Data: data}, nil

	default:
		return nil, fmt.Errorf("%w: %s: unsupported file type %v", ErrUnreadable, path, entry.Type())
	}
}
