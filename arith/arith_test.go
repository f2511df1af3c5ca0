package arith

import (
	"errors"
	"testing"
)

func TestCheckedRejectsOverflow(t *testing.T) {
	t.Parallel()

	p := ForMode(Checked)

	for _, tt := range []struct {
		name  string
		got   func() (uint64, error)
		want  uint64
		fails bool
	}{
		{
			name: "add fits",
			got:  func() (uint64, error) { return p.Add("elen", 16, 250, 9) },
			want: 259,
		},
		{
			name:  "add overflows u8",
			got:   func() (uint64, error) { return p.Add("page", 8, 250, 9) },
			fails: true,
		},
		{
			name: "sub fits",
			got:  func() (uint64, error) { return p.Sub("fatStart", 8, 256, 9) },
			want: 247,
		},
		{
			name:  "sub underflows",
			got:   func() (uint64, error) { return p.Sub("fatStart", 8, 3, 9) },
			fails: true,
		},
		{
			name: "mul fits",
			got:  func() (uint64, error) { return p.Mul("offset", 32, 0x4000, 4) },
			want: 0x10000,
		},
		{
			name:  "mul overflows u16",
			got:   func() (uint64, error) { return p.Mul("result", 16, 0x4000, 4) },
			fails: true,
		},
		{
			name: "ceildiv exact",
			got:  func() (uint64, error) { return p.CeilDiv("blocks", 16, 2048, 256) },
			want: 8,
		},
		{
			name: "ceildiv rounds up",
			got:  func() (uint64, error) { return p.CeilDiv("blocks", 16, 2500, 1024) },
			want: 3,
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.got()
			if tt.fails {
				if !errors.Is(err, ErrOverflow) {
					t.Fatalf("got (%d, %v), want overflow", got, err)
				}
				var oe *OverflowError
				if !errors.As(err, &oe) {
					t.Fatalf("error %v does not carry operands", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWrappingReducesModuloWidth(t *testing.T) {
	t.Parallel()

	p := ForMode(Wrapping)

	for _, tt := range []struct {
		name string
		got  func() (uint64, error)
		want uint64
	}{
		{
			name: "add wraps u8",
			got:  func() (uint64, error) { return p.Add("page", 8, 250, 9) },
			want: 3,
		},
		{
			name: "sub wraps below zero",
			got:  func() (uint64, error) { return p.Sub("fatStart", 8, 3, 9) },
			want: 0xFA,
		},
		{
			name: "fat start of a 4 MiB ROM",
			got:  func() (uint64, error) { return p.Sub("fatStart", 8, 256, 9) },
			want: 247,
		},
		{
			name: "mul wraps u16",
			got:  func() (uint64, error) { return p.Mul("result", 16, 0x4000, 4) },
			want: 0,
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.got()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestPoliciesAgreeBelowOverflow(t *testing.T) {
	t.Parallel()

	c, w := ForMode(Checked), ForMode(Wrapping)
	for a := uint64(0); a < 200; a += 13 {
		for b := uint64(1); b < 55; b += 7 {
			cg, err := c.Add("x", 8, a, b)
			if err != nil {
				continue // overflows, divergence expected
			}
			wg, err := w.Add("x", 8, a, b)
			if err != nil {
				t.Fatal(err)
			}
			if cg != wg {
				t.Fatalf("Add(%d, %d): checked %d != wrapping %d", a, b, cg, wg)
			}
		}
	}
}

func TestModeFromString(t *testing.T) {
	t.Parallel()

	if m, err := ModeFromString("checked"); err != nil || m != Checked {
		t.Fatalf("checked: got (%v, %v)", m, err)
	}
	if m, err := ModeFromString("wrapping"); err != nil || m != Wrapping {
		t.Fatalf("wrapping: got (%v, %v)", m, err)
	}
	if _, err := ModeFromString("fast"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
