package kfs

import (
	"fmt"

	"github.com/knightos/genkfs/arith"
)

// Geometry is the physical layout of one ROM image. It is derived from
// the ROM's length and carries no behavior.
type Geometry struct {
	// TotalSize is the ROM length in bytes, a multiple of PageLength.
	TotalSize int64
	// DatStart is the first data page; pages below it are reserved.
	DatStart uint8
	// FatStart is the page the FAT grows downward from, counted
	// from the top of the image: totalPages - 9.
	FatStart uint8
}

// Pages returns the number of flash pages in the image.
func (g Geometry) Pages() int64 { return g.TotalSize / PageLength }

// GeometryForROM derives the Geometry for a ROM of the given size. The
// FAT start page is an 8-bit quantity computed through p: the original
// tool's C arithmetic truncates totalPages-9 to a byte, which the
// wrapping policy reproduces and the checked policy rejects.
func GeometryForROM(size int64, p arith.Policy) (Geometry, error) {
	if size <= 0 || size%PageLength != 0 {
		return Geometry{}, fmt.Errorf("ROM size %d is not a multiple of the page length %#x", size, PageLength)
	}
	pages := size / PageLength
	if pages <= int64(DatStart) {
		return Geometry{}, fmt.Errorf("ROM of %d pages is no larger than the reserved kernel region", pages)
	}
	fatStart, err := p.Sub("fatStart", 8, uint64(pages), 9)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{
		TotalSize: size,
		DatStart:  DatStart,
		FatStart:  uint8(fatStart),
	}, nil
}
