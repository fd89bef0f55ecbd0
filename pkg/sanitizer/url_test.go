package sanitizer

import "testing"

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "adds https scheme",
			input: "pay.example.com/checkout/AbC123",
			want:  "https://pay.example.com/checkout/AbC123",
		},
		{
			name:  "lowercases host only",
			input: "  HTTPS://Pay.Example.COM/Session/XyZ?token=QwE  ",
			want:  "https://pay.example.com/Session/XyZ?token=QwE",
		},
		{
			name:  "keeps explicit http",
			input: "http://localhost:8080/pay",
			want:  "http://localhost:8080/pay",
		},
		{
			name:  "drops tracking parameters",
			input: "https://pay.example.com/s?utm_source=mail&id=42&UTM_Campaign=x",
			want:  "https://pay.example.com/s?id=42",
		},
		{
			name:  "trims trailing slash",
			input: "https://pay.example.com/s/",
			want:  "https://pay.example.com/s",
		},
		{
			name:  "empty",
			input: "   ",
			want:  "",
		},
		{
			name:  "no host",
			input: "https:///path",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeURL(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if got != "" && SanitizeURL(got) != got {
				t.Errorf("SanitizeURL is not idempotent for %q", got)
			}
		})
	}
}
