package types

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in        string
		precision DatePrecision
		want      time.Time
		wantErr   bool
	}{
		{"1973", PrecisionYear, time.Date(1973, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"1973-09", PrecisionMonth, time.Date(1973, 9, 1, 0, 0, 0, 0, time.UTC), false},
		{"1973-09-19", PrecisionDay, time.Date(1973, 9, 19, 0, 0, 0, 0, time.UTC), false},
		{"", 0, time.Time{}, true},
		{"1973-13-01", 0, time.Time{}, true},
		{"19730919", 0, time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDate(%q) error = nil, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q): %v", tt.in, err)
			}
			if got.Precision != tt.precision || !got.Time.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %+v, want %v at precision %d", tt.in, got, tt.want, tt.precision)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestPageHasNext(t *testing.T) {
	var nilPage *Page
	if nilPage.HasNext() {
		t.Error("nil page HasNext() = true")
	}
	if (&Page{}).HasNext() {
		t.Error("empty page HasNext() = true")
	}
	if !(&Page{Next: "http://example/next"}).HasNext() {
		t.Error("page with link HasNext() = false")
	}
}
