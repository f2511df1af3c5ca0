// Package arith routes every KFS field computation through a selectable
// overflow policy. The original genkfs tool performs its size and offset
// arithmetic on fixed-width C integers, so results silently wrap; the
// wrapping policy reproduces that behavior bit-for-bit, while the checked
// policy rejects any value that does not fit the on-disk field.
package arith

import (
	"errors"
	"fmt"
)

// Mode selects which Policy a build uses.
type Mode int

const (
	// Checked rejects results that do not fit their target field.
	Checked Mode = iota
	// Wrapping reduces results modulo 2^width, like the original tool.
	Wrapping
)

func (m Mode) String() string {
	switch m {
	case Checked:
		return "checked"
	case Wrapping:
		return "wrapping"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ModeFromString recognizes exactly "checked" and "wrapping".
func ModeFromString(s string) (Mode, error) {
	switch s {
	case "checked":
		return Checked, nil
	case "wrapping":
		return Wrapping, nil
	}
	return 0, fmt.Errorf("unknown arithmetic mode %q (want checked or wrapping)", s)
}

// ErrOverflow matches any *OverflowError via errors.Is.
var ErrOverflow = errors.New("arithmetic overflow")

// OverflowError reports a checked-mode computation whose result does not
// fit the target field. Field names the on-disk quantity being computed.
type OverflowError struct {
	Field string
	Op    string
	Width uint
	A, B  uint64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s: %d %s %d overflows %d bits", e.Field, e.A, e.Op, e.B, e.Width)
}

func (e *OverflowError) Is(target error) bool { return target == ErrOverflow }

// Policy performs arithmetic destined for a fixed-width on-disk field.
// The width argument is the bit width of that field (8, 16, 24 or 32).
// Implementations are deterministic and side-effect free.
type Policy interface {
	Add(field string, width uint, a, b uint64) (uint64, error)
	Sub(field string, width uint, a, b uint64) (uint64, error)
	Mul(field string, width uint, a, b uint64) (uint64, error)
	Div(field string, width uint, a, b uint64) (uint64, error)
	// CeilDiv rounds the quotient up to the next whole unit.
	CeilDiv(field string, width uint, a, b uint64) (uint64, error)
}

// ForMode returns the Policy implementing m.
func ForMode(m Mode) Policy {
	if m == Wrapping {
		return wrapping{}
	}
	return checked{}
}

func mask(width uint) uint64 {
	return 1<<width - 1
}

type checked struct{}

func (checked) fit(field, op string, width uint, a, b, result uint64) (uint64, error) {
	if result > mask(width) {
		return 0, &OverflowError{Field: field, Op: op, Width: width, A: a, B: b}
	}
	return result, nil
}

func (c checked) Add(field string, width uint, a, b uint64) (uint64, error) {
	result := a + b
	if result < a {
		return 0, &OverflowError{Field: field, Op: "+", Width: width, A: a, B: b}
	}
	return c.fit(field, "+", width, a, b, result)
}

func (c checked) Sub(field string, width uint, a, b uint64) (uint64, error) {
	if b > a {
		return 0, &OverflowError{Field: field, Op: "-", Width: width, A: a, B: b}
	}
	return c.fit(field, "-", width, a, b, a-b)
}

func (c checked) Mul(field string, width uint, a, b uint64) (uint64, error) {
	result := a * b
	if a != 0 && result/a != b {
		return 0, &OverflowError{Field: field, Op: "*", Width: width, A: a, B: b}
	}
	return c.fit(field, "*", width, a, b, result)
}

func (c checked) Div(field string, width uint, a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, fmt.Errorf("%s: division by zero", field)
	}
	return c.fit(field, "/", width, a, b, a/b)
}

func (c checked) CeilDiv(field string, width uint, a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, fmt.Errorf("%s: division by zero", field)
	}
	result := a / b
	if a%b > 0 {
		result++
	}
	return c.fit(field, "ceil/", width, a, b, result)
}

type wrapping struct{}

func (wrapping) Add(field string, width uint, a, b uint64) (uint64, error) {
	return (a + b) & mask(width), nil
}

func (wrapping) Sub(field string, width uint, a, b uint64) (uint64, error) {
	// Unsigned wraparound in uint64 reduces to the right value once masked.
	return (a - b) & mask(width), nil
}

func (wrapping) Mul(field string, width uint, a, b uint64) (uint64, error) {
	return (a * b) & mask(width), nil
}

func (wrapping) Div(field string, width uint, a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, fmt.Errorf("%s: division by zero", field)
	}
	return (a / b) & mask(width), nil
}

func (wrapping) CeilDiv(field string, width uint, a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, fmt.Errorf("%s: division by zero", field)
	}
	result := a / b
	if a%b > 0 {
		result++
	}
	return result & mask(width), nil
}
