// Package humanize formats byte counts and flash page counts for log
// and summary output.
package humanize

import "fmt"

func Bytes(bytes uint64) string {
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%.f MiB", float64(bytes)/1024/1024)
	case bytes >= 1024:
		return fmt.Sprintf("%.f KiB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// Pages describes a number of flash pages together with the bytes they
// span.
func Pages(pages, pageLength uint64) string {
	if pages == 1 {
		return fmt.Sprintf("1 page (%s)", Bytes(pageLength))
	}
	return fmt.Sprintf("%d pages (%s)", pages, Bytes(pages*pageLength))
}
