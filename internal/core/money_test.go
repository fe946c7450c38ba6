package core

import "testing"

func TestParseAmountToPaise(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain integer", input: "904", want: 90400},
		{name: "two decimals", input: "2450.00", want: 245000},
		{name: "western grouping", input: "2,450.00", want: 245000},
		{name: "indian grouping", input: "1,00,000", want: 10000000},
		{name: "single decimal digit", input: "12.3", want: 1230},
		{name: "third digit rounds up", input: "12.346", want: 1235},
		{name: "third digit rounds down", input: "12.345", want: 1235},
		{name: "zero allowed", input: "0", want: 0},
		{name: "empty", input: "", wantErr: true},
		{name: "negative", input: "-12", wantErr: true},
		{name: "explicit plus", input: "+12", wantErr: true},
		{name: "letters", input: "12a", wantErr: true},
		{name: "two dots", input: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmountToPaise(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmountToPaise(%q) = %d, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmountToPaise(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmountToPaise(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMoneyMarshalJSON(t *testing.T) {
	tests := []struct {
		paise int64
		want  string
	}{
		{245000, "2450.00"},
		{0, "0.00"},
		{1, "0.01"},
		{123456789, "1234567.89"},
	}
	for _, tt := range tests {
		got, err := Money{Paise: tt.paise}.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON(%d): %v", tt.paise, err)
		}
		if string(got) != tt.want {
			t.Errorf("MarshalJSON(%d) = %s, want %s", tt.paise, got, tt.want)
		}
	}
}
