// Package kfs builds KFS filesystem images, the filesystem KnightOS
// uses on TI-8x calculators. A build packages a collected host tree
// (package fstree) into the filesystem region of an existing ROM image:
// the planner assigns every node a spot in the FAT, which grows downward
// from the top flash page, and every file a chain of 256-byte blocks,
// which grow upward from the first data page. The encoder then emits the
// exact bytes the original genkfs tool would write, so that images are
// indistinguishable from its output.
//
// Every size, offset and pointer computation goes through an
// arith.Policy, so a single switch selects between rejecting overflow
// and reproducing the original tool's wraparound artifacts.
package kfs

const (
	// PageLength is the size of one flash page.
	PageLength = 0x4000
	// BlockSize is the size of one data block within a page.
	BlockSize = 0x100

	// DatStart is the first flash page of the data section. Pages below
	// it hold the kernel and are never touched.
	DatStart = 0x04

	// maxBlockIndex is the highest usable block index within a page.
	// Block 0 holds the page magic and the per-block chain headers.
	maxBlockIndex = 0x3F

	version = 0x0

	fileID    = 0x7F
	dirID     = 0xBF
	symlinkID = 0xDF

	// endOfChain marks the last block of a file in a chain header.
	endOfChain = uint16(0xFFFF)
	// inUseMask clears the top bit of a previous-section pointer, which
	// marks the block as in use.
	inUseMask = uint16(0x7FFF)
)

var magic = []byte("KFS")

// EntryKind is the on-disk type ID of a FAT entry.
type EntryKind uint8

const (
	EntryFile    EntryKind = fileID
	EntryDir     EntryKind = dirID
	EntrySymlink EntryKind = symlinkID
)

func (k EntryKind) String() string {
	switch k {
	case EntryFile:
		return "file"
	case EntryDir:
		return "directory"
	case EntrySymlink:
		return "symlink"
	}
	return "unknown"
}
