package language

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// 2-letter codes pass through
		{"en", "en"},
		{"EN", "en"},
		{"zh", "zh"},
		// 3-letter codes convert
		{"eng", "en"},
		{"zho", "zh"},
		{"chi", "zh"},
		{"fre", "fr"},
		{"jpn", "ja"},
		{"kor", "ko"},
		// Word forms
		{"english", "en"},
		{"Chinese", "zh"},
		{"KOREAN", "ko"},
		// BCP-47 regional tags reduce to base
		{"zh-CN", "zh"},
		{"zh-Hant", "zh"},
		{"pt-BR", "pt"},
		{"en-US", "en"},
		// Unknown 2-letter passes through
		{"xy", "xy"},
		// Garbage
		{"@@", ""},
		{"", ""},
		{" ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsChinese(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"zh", true},
		{"ZH", true},
		{"zho", true},
		{"chi", true},
		{"zh-CN", true},
		{"zh-TW", true},
		{"chinese", true},
		{"en", false},
		{"ja", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsChinese(tt.input); got != tt.expected {
			t.Errorf("IsChinese(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "English"},
		{"zho", "Chinese"},
		{"zh-CN", "Chinese"},
		{"", "Unknown"},
		{"xx", "XX"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.input); got != tt.expected {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
