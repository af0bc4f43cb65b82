package validation

import (
	"errors"
	"testing"
)

func TestParseIndex(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		n       int
		want    int
		wantErr error
	}{
		{name: "first", text: "1", n: 3, want: 0},
		{name: "last with spaces", text: "  3 ", n: 3, want: 2},
		{name: "zero", text: "0", n: 3, wantErr: ErrOutOfRange},
		{name: "too big", text: "99", n: 3, wantErr: ErrOutOfRange},
		{name: "empty list", text: "1", n: 0, wantErr: ErrOutOfRange},
		{name: "word", text: "deux", n: 3, wantErr: ErrNotANumber},
		{name: "decimal", text: "1.5", n: 3, wantErr: ErrNotANumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndex(tt.text, tt.n)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseIndex(%q) error = %v, want %v", tt.text, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIndex(%q) unexpected error: %v", tt.text, err)
			}
			if got != tt.want {
				t.Fatalf("ParseIndex(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantIndex int
		wantQty   int
		wantErr   error
	}{
		{name: "default quantity", text: "2", wantIndex: 1, wantQty: 4},
		{name: "explicit quantity", text: "1 2", wantIndex: 0, wantQty: 2},
		{name: "clamped high", text: "1 50", wantIndex: 0, wantQty: 20},
		{name: "clamped low", text: "1 0", wantIndex: 0, wantQty: 1},
		{name: "negative clamped", text: "3 -2", wantIndex: 2, wantQty: 1},
		{name: "bad quantity", text: "1 beaucoup", wantErr: ErrBadQuantity},
		{name: "out of range", text: "4 2", wantErr: ErrOutOfRange},
		{name: "too many fields", text: "1 2 3", wantErr: ErrNotANumber},
		{name: "empty", text: "   ", wantErr: ErrNotANumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, qty, err := ParseSelection(tt.text, 3)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseSelection(%q) error = %v, want %v", tt.text, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSelection(%q) unexpected error: %v", tt.text, err)
			}
			if idx != tt.wantIndex || qty != tt.wantQty {
				t.Fatalf("ParseSelection(%q) = (%d, %d), want (%d, %d)", tt.text, idx, qty, tt.wantIndex, tt.wantQty)
			}
		})
	}
}

func TestIsNumber(t *testing.T) {
	for text, want := range map[string]bool{
		"1":     true,
		"12 4":  true,
		" 3 ":   true,
		"menu":  false,
		"1 2 3": false,
		"":      false,
		"a 2":   false,
	} {
		if got := IsNumber(text); got != want {
			t.Fatalf("IsNumber(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestIsEmail(t *testing.T) {
	valid := []string{"client@example.com", " jean.dupont@garage.gp "}
	invalid := []string{"non", "", "client@", "Jean <jean@ex.com>", "a b@ex.com", "client@localhost"}

	for _, v := range valid {
		if !IsEmail(v) {
			t.Fatalf("IsEmail(%q) = false, want true", v)
		}
	}
	for _, v := range invalid {
		if IsEmail(v) {
			t.Fatalf("IsEmail(%q) = true, want false", v)
		}
	}
}
