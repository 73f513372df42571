package errors

import (
	"strings"
	"testing"
)

func TestValidateSource(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://example.com/chart.png", false},
		{"http with query", "http://localhost:5000/static/title.png?t=1", false},
		{"data url", "data:image/png;base64,iVBORw0KGgo=", false},
		{"relative file", "charts/bar.png", false},
		{"absolute file", "/tmp/chart.svg", false},

		{"empty", "", true},
		{"data without payload", "data:image/png;base64", true},
		{"ftp", "ftp://example.com/a.png", true},
		{"traversal", "../secret.png", true},
		{"nested traversal", "a/../../b.png", true},
		{"control char", "a\x01.png", true},
		{"too long", strings.Repeat("a", 1100), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSource(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidSource) && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("unexpected code %v", GetCode(err))
			}
		})
	}
}

func TestValidateAssetName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"png", "title_1.png", false},
		{"data file", "sales.csv", false},
		{"nested", "pictograms/icon_2.png", false},

		{"empty", "", true},
		{"traversal", "../etc/passwd", true},
		{"query", "a.png?x=1", true},
		{"fragment", "a.png#x", true},
		{"backslash", "a\\b.png", true},
		{"newline", "a\nb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAssetName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAssetName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "out/final.png", false},
		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "a/../b", true},
		{"backslash", "a\\b", true},
		{"null", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"https://example.com", false},
		{"http://example.com", false},
		{"", true},
		{"file:///etc/passwd", true},
		{"javascript:alert(1)", true},
	}

	for _, tt := range tests {
		if err := ValidateURL(tt.input); (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
		{"deadbeefcafe0123", false},
		{"", true},
		{"short", true},
		{"../../../etc", true},
		{"zzzzzzzzzzzz", true},
	}

	for _, tt := range tests {
		if err := ValidateSessionID(tt.input); (err != nil) != tt.wantErr {
			t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}
