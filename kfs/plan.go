package kfs

import (
	"errors"
	"fmt"

	"github.com/knightos/genkfs/arith"
	"github.com/knightos/genkfs/fstree"
)

// ErrOutOfSpace matches any *OutOfSpaceError via errors.Is.
var ErrOutOfSpace = errors.New("out of space")

// OutOfSpaceError reports that placing a node would make the data
// section (growing upward) and the FAT (growing downward) collide, or
// would leave the image entirely.
type OutOfSpaceError struct {
	Path  string // node being placed; empty for the initial region check
	Off   int64  // first byte past the space the build needed
	Limit int64  // first byte that was not available
}

func (e *OutOfSpaceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("out of space: filesystem region [%#x, %#x) does not fit the image", e.Limit, e.Off)
	}
	return fmt.Sprintf("out of space placing %s: allocation reaches %#x, boundary at %#x", e.Path, e.Off, e.Limit)
}

func (e *OutOfSpaceError) Is(target error) bool { return target == ErrOutOfSpace }

// Record is the fully populated form of one FAT entry, ready for
// encoding. Which fields are meaningful depends on Kind.
type Record struct {
	Kind    EntryKind
	Path    string // model-relative path, for diagnostics only
	Name    string
	Target  string // symlinks: literal link text
	Parent  uint16
	DirID   uint16 // directories: the ID their children refer to
	Length  uint32 // files: content length (a 24-bit field)
	Section uint16 // files: first data section ID
	// EntryLen is the value of the on-disk entry length field; the
	// encoded entry occupies EntryLen+3 bytes.
	EntryLen uint16
	// Offset is the ROM offset the (reversed) entry is written at.
	Offset int64
}

// Block is one claimed 256-byte data block. Page and Index address it
// physically; Prev and Next are the chain header values.
type Block struct {
	Page  uint16
	Index uint8
	Prev  uint16 // previous section ID with the in-use bit cleared
	Next  uint16 // next section ID, or endOfChain
	Data  []byte // payload, up to BlockSize bytes, never padded
}

// Layout is the planner's output: every FAT record and data block with
// its final position, plus the cursor state the build summary derives
// from.
type Layout struct {
	Geometry Geometry
	Records  []Record
	Blocks   []Block
	// MagicPages lists the data pages past the first one entered by the
	// block cursor; each receives the four-byte page magic.
	MagicPages []uint16
	// FatPtrStart and FatPtr delimit the FAT bytes: the FAT occupies
	// [FatPtr, FatPtrStart).
	FatPtrStart uint32
	FatPtr      uint32
	// Summary is the reference tool's result word: FAT page count in
	// the high byte, data page count in the low byte.
	Summary uint16
}

// DataPages returns the number of data pages the build used.
func (l *Layout) DataPages() uint8 { return uint8(l.Summary) }

// FatPages returns the number of FAT pages the build used.
func (l *Layout) FatPages() uint8 { return uint8(l.Summary >> 8) }

type planner struct {
	g      Geometry
	p      arith.Policy
	layout *Layout

	dirID   uint16 // last assigned directory ID; root is 0
	page    uint16 // physical page of the block cursor
	index   uint8  // block index within the page, 1..maxBlockIndex
	section uint16 // cursor as a section ID, page<<8|index
	fatptr  uint32
	dataTop int64             // first byte past the highest claimed data byte
	claimed map[uint32]string // physical block -> path, disjointness invariant
}

// Plan assigns every node of the tree its FAT record and, for files, its
// chain of data blocks, in the depth-first name order the tree fixes.
// Allocation is a pair of bump cursors: blocks are claimed upward from
// the first data page, FAT records downward from the top of page
// FatStart, and the build fails with an *OutOfSpaceError as soon as the
// two regions would meet.
func Plan(root *fstree.Dir, g Geometry, p arith.Policy) (*Layout, error) {
	fatTop, err := p.Add("fatPointer", 32, uint64(g.FatStart), 1)
	if err != nil {
		return nil, err
	}
	fatTop, err = p.Mul("fatPointer", 32, fatTop, PageLength)
	if err != nil {
		return nil, err
	}
	if int64(fatTop) > g.TotalSize {
		return nil, &OutOfSpaceError{Off: int64(fatTop), Limit: g.TotalSize}
	}

	pl := &planner{
		g: g,
		p: p,
		layout: &Layout{
			Geometry:    g,
			FatPtrStart: uint32(fatTop),
		},
		page:    uint16(g.DatStart),
		index:   1,
		section: uint16(g.DatStart)<<8 | 1,
		fatptr:  uint32(fatTop),
		// Block 0 of the first data page holds the magic and the chain
		// headers, so the data region starts in use.
		dataTop: int64(g.DatStart)*PageLength + BlockSize,
		claimed: make(map[uint32]string),
	}
	if pl.dataTop > int64(fatTop) {
		return nil, &OutOfSpaceError{Off: pl.dataTop, Limit: int64(fatTop)}
	}

	if err := pl.walk(root, 0, ""); err != nil {
		return nil, err
	}
	if err := pl.summarize(); err != nil {
		return nil, err
	}
	pl.layout.FatPtr = pl.fatptr
	return pl.layout, nil
}

func (pl *planner) walk(d *fstree.Dir, parent uint16, prefix string) error {
	for _, child := range d.Children {
		path := prefix + "/" + child.NodeName()
		switch n := child.(type) {
		case *fstree.Symlink:
			elen := uint64(len(n.Name) + len(n.Target) + 5)
			off, err := pl.pushEntry(path, elen)
			if err != nil {
				return err
			}
			pl.layout.Records = append(pl.layout.Records, Record{
				Kind:     EntrySymlink,
				Path:     path,
				Name:     n.Name,
				Target:   n.Target,
				Parent:   parent,
				EntryLen: uint16(elen),
				Offset:   off,
			})

		case *fstree.Dir:
			id, err := pl.p.Add("directoryID", 16, uint64(pl.dirID), 1)
			if err != nil {
				return err
			}
			pl.dirID = uint16(id)
			elen := uint64(len(n.Name) + 6)
			off, err := pl.pushEntry(path, elen)
			if err != nil {
				return err
			}
			pl.layout.Records = append(pl.layout.Records, Record{
				Kind:     EntryDir,
				Path:     path,
				Name:     n.Name,
				Parent:   parent,
				DirID:    pl.dirID,
				EntryLen: uint16(elen),
				Offset:   off,
			})
			if err := pl.walk(n, pl.dirID, path); err != nil {
				return err
			}

		case *fstree.File:
			elen := uint64(len(n.Name) + 9)
			off, err := pl.pushEntry(path, elen)
			if err != nil {
				return err
			}
			pl.layout.Records = append(pl.layout.Records, Record{
				Kind:     EntryFile,
				Path:     path,
				Name:     n.Name,
				Parent:   parent,
				Length:   uint32(len(n.Data)),
				Section:  pl.section, // recorded before any block is claimed
				EntryLen: uint16(elen),
				Offset:   off,
			})
			if err := pl.claimBlocks(path, n.Data); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unhandled node type %T at %s", child, path)
		}
	}
	return nil
}

// pushEntry lowers the FAT pointer by the encoded entry size and returns
// the entry's offset.
func (pl *planner) pushEntry(path string, elen uint64) (int64, error) {
	total, err := pl.p.Add("entryLength", 32, elen, 3)
	if err != nil {
		return 0, err
	}
	ptr, err := pl.p.Sub("fatPointer", 32, uint64(pl.fatptr), total)
	if err != nil {
		return 0, err
	}
	if int64(ptr) < pl.dataTop || ptr > uint64(pl.layout.FatPtrStart) {
		return 0, &OutOfSpaceError{Path: path, Off: int64(ptr), Limit: pl.dataTop}
	}
	pl.fatptr = uint32(ptr)
	return int64(ptr), nil
}

// claimBlocks assigns data blocks for one file's content, advancing the
// cursor exactly like the reference tool: indexes 1..maxBlockIndex
// within a page, then on to the next page, which receives the page
// magic when entered.
func (pl *planner) claimBlocks(path string, data []byte) error {
	remaining := len(data)
	off := 0
	prev := endOfChain
	for remaining > 0 {
		page, index, sid := pl.page, pl.index, pl.section

		key := uint32(page)<<8 | uint32(index)
		if owner, dup := pl.claimed[key]; dup {
			return fmt.Errorf("internal error: block %d/%#x claimed by both %s and %s", page, index, owner, path)
		}
		pl.claimed[key] = path

		if err := pl.advance(path); err != nil {
			return err
		}

		next := endOfChain
		if remaining > BlockSize {
			next = pl.section
		}

		n := remaining
		if n > BlockSize {
			n = BlockSize
		}
		payloadEnd := int64(page)*PageLength + (int64(index)+1)*BlockSize
		if payloadEnd > int64(pl.fatptr) {
			return &OutOfSpaceError{Path: path, Off: payloadEnd, Limit: int64(pl.fatptr)}
		}

		pl.layout.Blocks = append(pl.layout.Blocks, Block{
			Page:  page,
			Index: index,
			Prev:  prev & inUseMask,
			Next:  next,
			Data:  data[off : off+n],
		})
		if payloadEnd > pl.dataTop {
			pl.dataTop = payloadEnd
		}

		prev = sid
		remaining -= n
		off += n
	}
	return nil
}

// advance moves the block cursor to the next block. The move happens
// even when the current block turns out to be a file's last, so a page
// magic can land on a page that never receives a block; the reference
// tool does the same.
func (pl *planner) advance(path string) error {
	index := pl.index + 1
	page := uint64(pl.page)
	if index > maxBlockIndex {
		index = 1
		var err error
		page, err = pl.p.Add("flashPage", 16, page, 1)
		if err != nil {
			return err
		}
		magicEnd := int64(page)*PageLength + int64(len(magic)) + 1
		if magicEnd > int64(pl.fatptr) {
			return &OutOfSpaceError{Path: path, Off: magicEnd, Limit: int64(pl.fatptr)}
		}
		pl.layout.MagicPages = append(pl.layout.MagicPages, uint16(page))
		if magicEnd > pl.dataTop {
			pl.dataTop = magicEnd
		}
	}
	hi, err := pl.p.Mul("sectionID", 16, page, 0x100)
	if err != nil {
		return err
	}
	sid, err := pl.p.Add("sectionID", 16, hi, uint64(index))
	if err != nil {
		return err
	}
	pl.page, pl.index, pl.section = uint16(page), index, uint16(sid)
	return nil
}

// summarize computes the reference tool's result word. This is the
// second arithmetic site the original C code lets wrap.
func (pl *planner) summarize() error {
	fatUsed, err := pl.p.Sub("fatBytes", 32, uint64(pl.layout.FatPtrStart), uint64(pl.fatptr))
	if err != nil {
		return err
	}
	fatPages, err := pl.p.CeilDiv("fatPages", 16, fatUsed, PageLength)
	if err != nil {
		return err
	}
	result, err := pl.p.Mul("summary", 16, fatPages, 0x100)
	if err != nil {
		return err
	}
	delta, err := pl.p.Sub("summary", 16, uint64(pl.section>>8), uint64(pl.g.DatStart))
	if err != nil {
		return err
	}
	result, err = pl.p.Add("summary", 16, result, delta)
	if err != nil {
		return err
	}
	result, err = pl.p.Add("summary", 16, result, 1)
	if err != nil {
		return err
	}
	pl.layout.Summary = uint16(result)
	return nil
}
