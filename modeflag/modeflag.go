// Package modeflag holds the arithmetic-mode selection shared by the
// genkfs commands. The mode defaults to checked arithmetic; the
// GENKFS_ARITH environment variable, the config file and the --arith
// flag override it in increasing order of precedence.
package modeflag

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/knightos/genkfs/arith"
)

var mode = func() string {
	if def := os.Getenv("GENKFS_ARITH"); def != "" {
		return def
	}
	return "checked"
}()

// RegisterPflags adds the --arith flag to fs.
func RegisterPflags(fs *pflag.FlagSet) {
	fs.StringVar(&mode,
		"arith",
		mode,
		`arithmetic policy: "checked" rejects overflowing field values, "wrapping" reproduces the original tool's overflow behavior`)
}

// SetMode overrides the selection, e.g. from a config file.
func SetMode(m string) {
	mode = m
}

// Mode parses the selection. Only "checked" and "wrapping" are
// recognized.
func Mode() (arith.Mode, error) {
	return arith.ModeFromString(mode)
}
