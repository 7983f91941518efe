package money

import (
	"errors"
	"testing"
	"testing/quick"
)

func TestParseMinor(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "500", want: 50000},
		{in: "500.5", want: 50050},
		{in: "0.01", want: 1},
		{in: "-12.30", want: -1230},
		{in: "1.005", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMinor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMinor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMinor(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	if got := Format(50000); got != "500.00" {
		t.Errorf("Format(50000) = %q", got)
	}
	if got := Format(7); got != "0.07" {
		t.Errorf("Format(7) = %q", got)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	f := func(minor int32) bool {
		got, err := ParseMinor(Format(int64(minor)))
		return err == nil && got == int64(minor)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestMulAddBounds(t *testing.T) {
	if got, err := Mul(1250, 4); err != nil || got != 5000 {
		t.Errorf("Mul(1250, 4) = %d, %v", got, err)
	}
	if _, err := Mul(1<<52, 4097); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Mul(2^52, 4097) error = %v, want ErrOutOfRange", err)
	}
	if got, err := Add(MaxMinor-1, 1); err != nil || got != MaxMinor {
		t.Errorf("Add at the bound = %d, %v", got, err)
	}
	if _, err := Add(MaxMinor, 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Add past the bound error = %v, want ErrOutOfRange", err)
	}
}
