// Package deviceprofile lists the calculator models KnightOS targets
// and the flash sizes their ROMs are expected to have, so a build can
// refuse a ROM that does not match the device it is meant for.
package deviceprofile

import (
	"fmt"
	"sort"

	"github.com/knightos/genkfs/kfs"
)

// Profile describes one supported calculator model.
type Profile struct {
	// Model is the full marketing name.
	Model string
	// Slug is the short name used on the command line.
	Slug string
	// ROMSize is the size of the device's flash chip in bytes.
	ROMSize int64
}

var profiles = map[string]Profile{
	"TI-73 Explorer": {
		Model:   "TI-73 Explorer",
		Slug:    "ti73",
		ROMSize: 512 * 1024,
	},
	"TI-83 Plus": {
		Model:   "TI-83 Plus",
		Slug:    "ti83p",
		ROMSize: 512 * 1024,
	},
	"TI-83 Plus Silver Edition": {
		Model:   "TI-83 Plus Silver Edition",
		Slug:    "ti83pse",
		ROMSize: 2048 * 1024,
	},
	"TI-84 Plus": {
		Model:   "TI-84 Plus",
		Slug:    "ti84p",
		ROMSize: 1024 * 1024,
	},
	"TI-84 Plus Silver Edition": {
		Model:   "TI-84 Plus Silver Edition",
		Slug:    "ti84pse",
		ROMSize: 2048 * 1024,
	},
	"TI-84 Plus C Silver Edition": {
		Model:   "TI-84 Plus C Silver Edition",
		Slug:    "ti84pcse",
		ROMSize: 4096 * 1024,
	},
}

// BySlug returns the profile identified by its command-line slug.
func BySlug(slug string) (Profile, bool) {
	for _, p := range profiles {
		if p.Slug == slug {
			return p, true
		}
	}
	return Profile{}, false
}

// Slugs returns all known slugs, sorted.
func Slugs() []string {
	var slugs []string
	for _, p := range profiles {
		slugs = append(slugs, p.Slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Profiles returns all known profiles keyed by model name.
func Profiles() map[string]Profile {
	return profiles
}

// CheckROMSize rejects a ROM whose size does not match the device.
func (p Profile) CheckROMSize(size int64) error {
	if size != p.ROMSize {
		return fmt.Errorf("%s: ROM is %d bytes, want %d", p.Model, size, p.ROMSize)
	}
	return nil
}

// Pages returns the number of flash pages on the device.
func (p Profile) Pages() int64 {
	return p.ROMSize / kfs.PageLength
}
