package kfs

import (
	"encoding/binary"
	"fmt"

	"github.com/knightos/genkfs/arith"
)

// Write is one encoder output: Data placed at byte offset Off in the
// image. Writes are applied in order; earlier writes may be overlaid by
// later ones (the page blanking is overlaid by everything else).
type Write struct {
	Off  int64
	Data []byte
}

// Encode serializes a Layout into the ordered writes that produce the
// reference tool's exact bytes: the 0xFF page blanking, the page magics,
// every reversed FAT entry, and each data block's chain header and
// payload. A payload is never padded; the bytes past a file's final
// content byte keep the blank value.
func Encode(l *Layout, p arith.Policy) ([]Write, error) {
	g := l.Geometry
	var writes []Write

	// Pages up to fatStart-4 are seeded with 'K' as their first byte.
	threshold, err := p.Sub("magicThreshold", 8, uint64(g.FatStart), 4)
	if err != nil {
		return nil, err
	}
	for page := uint64(g.DatStart); page <= uint64(g.FatStart); page++ {
		b := make([]byte, PageLength)
		for i := range b {
			b[i] = 0xFF
		}
		if page <= threshold {
			b[0] = 'K'
		}
		writes = append(writes, Write{Off: int64(page) * PageLength, Data: b})
	}

	// The first data page's magic is the three magic bytes only; pages
	// entered later also get the version byte.
	writes = append(writes, Write{Off: int64(g.DatStart) * PageLength, Data: magic})
	for _, page := range l.MagicPages {
		writes = append(writes, Write{
			Off:  int64(page) * PageLength,
			Data: append(append([]byte(nil), magic...), 0xFF<<version),
		})
	}

	for i := range l.Records {
		b, err := encodeRecord(&l.Records[i], p)
		if err != nil {
			return nil, err
		}
		writes = append(writes, Write{Off: l.Records[i].Offset, Data: b})
	}

	for _, blk := range l.Blocks {
		hdr := make([]byte, 4)
		binary.LittleEndian.PutUint16(hdr[0:2], blk.Prev)
		binary.LittleEndian.PutUint16(hdr[2:4], blk.Next)
		base := int64(blk.Page) * PageLength
		writes = append(writes,
			Write{Off: base + int64(blk.Index)*4, Data: hdr},
			Write{Off: base + int64(blk.Index)*BlockSize, Data: blk.Data},
		)
	}
	return writes, nil
}

// encodeRecord builds one FAT entry. Entries are stored byte-reversed:
// the FAT grows downward and the filesystem reads it backward.
func encodeRecord(r *Record, p arith.Policy) ([]byte, error) {
	b := make([]byte, int(r.EntryLen)+3)
	binary.LittleEndian.PutUint16(b[1:3], r.EntryLen)
	binary.LittleEndian.PutUint16(b[3:5], r.Parent)

	switch r.Kind {
	case EntryDir:
		b[0] = dirID
		binary.LittleEndian.PutUint16(b[5:7], r.DirID)
		b[7] = 0xFF // flags
		copy(b[8:], r.Name)

	case EntryFile:
		b[0] = fileID
		b[5] = 0xFF // flags
		b[6] = byte(r.Length)
		b[7] = byte(r.Length >> 8)
		b[8] = byte(r.Length >> 16)
		b[9] = byte(r.Section)
		b[10] = byte(r.Section >> 8)
		copy(b[11:], r.Name)

	case EntrySymlink:
		b[0] = symlinkID
		// The name length prefix counts the zero byte separating name
		// and target, and is an 8-bit field.
		nl, err := p.Add("nameLength", 8, uint64(len(r.Name)), 1)
		if err != nil {
			return nil, err
		}
		b[5] = byte(nl)
		copy(b[6:], r.Name)
		copy(b[7+len(r.Name):], r.Target)

	default:
		return nil, fmt.Errorf("unhandled entry kind %#x at %s", uint8(r.Kind), r.Path)
	}

	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b, nil
}

// Apply plays encoder writes into an image buffer.
func Apply(buf []byte, writes []Write) error {
	for _, w := range writes {
		if w.Off < 0 || w.Off+int64(len(w.Data)) > int64(len(buf)) {
			return fmt.Errorf("write of %d bytes at %#x exceeds image size %#x", len(w.Data), w.Off, len(buf))
		}
		copy(buf[w.Off:], w.Data)
	}
	return nil
}
