package fingerprint

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "decimal with thousands separator", input: "1,234.56", want: 123456},
		{name: "negative with currency symbol", input: "-12 €", want: -12},
		{name: "plain cents", input: "4530", want: 4530},
		{name: "decimal point stripped", input: "45.30", want: 4530},
		{name: "trailing currency code", input: "45.30 EUR", want: 4530},
		{name: "zero", input: "0", want: 0},
		{name: "letters only", input: "abc", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
		{name: "symbols only", input: "€ $", wantErr: true},
		{name: "double minus", input: "--12", wantErr: true},
		{name: "minus inside digits", input: "12-34", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeAmount(%q) = %d, want error", tt.input, got)
				}
				var malformed *MalformedAmountError
				if !errors.As(err, &malformed) {
					t.Fatalf("NormalizeAmount(%q) error type = %T, want *MalformedAmountError", tt.input, err)
				}
				if !strings.Contains(err.Error(), tt.input) && tt.input != "" {
					t.Errorf("error message %q does not name the offending input %q", err.Error(), tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeAmount(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeAmount(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
