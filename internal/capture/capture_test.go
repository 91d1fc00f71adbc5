package capture

import (
	"testing"
	"time"
)

// Unit tests - no real browser needed

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com", false},
		{"http://example.com", false},
		{"https://example.com/path?query=1", false},
		{"ftp://example.com", true},    // unsupported scheme
		{"not-a-url", true},            // invalid URL
		{"", true},                     // empty
		{"javascript:alert(1)", true},  // dangerous scheme
		{"file:///etc/passwd", true},   // local file access
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := validateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple text", "Hello World", "Hello World"},
		{"extra whitespace", "Hello   World\n\n\nTest", "Hello World\n\nTest"},
		{"trim spaces", "   Hello World   ", "Hello World"},
		{"tabs to spaces", "Hello\tWorld", "Hello World"},
		{"empty lines", "Line1\n\n\n\n\nLine2", "Line1\n\nLine2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanText(tt.input)
			if got != tt.want {
				t.Errorf("cleanText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigTimeout(t *testing.T) {
	cfg := &Config{TimeoutSeconds: 10}
	if cfg.GetTimeout() != 10*time.Second {
		t.Errorf("timeout = %v", cfg.GetTimeout())
	}

	cfg = &Config{}
	if cfg.GetTimeout() != 30*time.Second {
		t.Errorf("default timeout = %v", cfg.GetTimeout())
	}
}
