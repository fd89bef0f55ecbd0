package sanitizer

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  Garden Suite  ",
			want:  "Garden Suite",
		},
		{
			name:  "multiple spaces between words",
			input: "Garden    Suite",
			want:  "Garden Suite",
		},
		{
			name:  "tabs and newlines",
			input: "Garden\t\nSuite",
			want:  "Garden Suite",
		},
		{
			name:  "control characters dropped",
			input: "Garden\x00 Suite\x07",
			want:  "Garden Suite",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
		{
			name:  "preserve special characters",
			input: " Café & Spa™ ",
			want:  "Café & Spa™",
		},
		{
			name:  "hebrew characters",
			input: " חדר זוגי ",
			want:  "חדר זוגי",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeName(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizeName(got); again != got {
				t.Errorf("NormalizeName is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "basic trim",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "multiple spaces",
			input: "hello    world",
			want:  "hello world",
		},
		{
			name:  "tabs and newlines",
			input: "hello\t\nworld",
			want:  "hello world",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Deluxe King", "deluxe king"},
		{"  DELUXE   King ", "deluxe king"},
		{"Café", "café"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeLabel(tt.input); got != tt.want {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeName_ExtremelyLongInput(t *testing.T) {
	input := make([]byte, 0, 20000)
	for range 5000 {
		input = append(input, "ab  "...)
	}
	got := NormalizeName(string(input))
	if len(got) != 5000*3-1 {
		t.Errorf("len(NormalizeName) = %d, want %d", len(got), 5000*3-1)
	}
}
