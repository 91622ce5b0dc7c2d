package main

import (
	"strings"
	"testing"
)

func TestValidateGenFlags(t *testing.T) {
	tests := []struct {
		name        string
		length      int
		count       int
		words       bool
		wordCount   int
		exclude     string
		expectError bool
	}{
		{
			name:   "valid defaults",
			length: defaultPasswordLength,
			count:  1,
		},
		{
			name:   "minimum length",
			length: minPasswordLength,
			count:  1,
		},
		{
			name:   "maximum length",
			length: maxPasswordLength,
			count:  1,
		},
		{
			name:        "length too short",
			length:      minPasswordLength - 1,
			count:       1,
			expectError: true,
		},
		{
			name:        "length too long",
			length:      maxPasswordLength + 1,
			count:       1,
			expectError: true,
		},
		{
			name:        "count zero",
			length:      24,
			count:       0,
			expectError: true,
		},
		{
			name:        "count too high",
			length:      24,
			count:       maxPasswordCount + 1,
			expectError: true,
		},
		{
			name:   "maximum count",
			length: 24,
			count:  maxPasswordCount,
		},
		{
			name:        "exclude too long",
			length:      24,
			count:       1,
			exclude:     strings.Repeat("a", maxExcludeLength+1),
			expectError: true,
		},
		{
			name:      "word mode valid",
			count:     1,
			words:     true,
			wordCount: defaultWordCount,
		},
		{
			name:        "word mode too few words",
			count:       1,
			words:       true,
			wordCount:   minWordCount - 1,
			expectError: true,
		},
		{
			name:        "word mode too many words",
			count:       1,
			words:       true,
			wordCount:   maxWordCount + 1,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldLength := genLength
			oldCount := genCount
			oldExclude := genExclude
			oldWords := genWords
			oldWordCount := genWordCount
			defer func() {
				genLength = oldLength
				genCount = oldCount
				genExclude = oldExclude
				genWords = oldWords
				genWordCount = oldWordCount
			}()

			genLength = tt.length
			genCount = tt.count
			genExclude = tt.exclude
			genWords = tt.words
			genWordCount = tt.wordCount

			err := validateGenFlags()
			if tt.expectError && err == nil {
				t.Errorf("expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuildCharset(t *testing.T) {
	tests := []struct {
		name        string
		noLowercase bool
		noUppercase bool
		noNumbers   bool
		noSymbols   bool
		exclude     string
		expectError bool
		contains    string
		notContains string
	}{
		{
			name:     "all character types",
			contains: "aA0!",
		},
		{
			name:        "no symbols",
			noSymbols:   true,
			contains:    "aA0",
			notContains: "!@#",
		},
		{
			name:        "no numbers",
			noNumbers:   true,
			contains:    "aA!",
			notContains: "0123",
		},
		{
			name:        "no uppercase",
			noUppercase: true,
			contains:    "a0!",
			notContains: "ABC",
		},
		{
			name:        "no lowercase",
			noLowercase: true,
			contains:    "A0!",
			notContains: "abc",
		},
		{
			name:        "exclude ambiguous",
			exclude:     "0O1lI",
			contains:    "a2!",
			notContains: "0O1lI",
		},
		{
			name:        "empty charset",
			noLowercase: true,
			noUppercase: true,
			noNumbers:   true,
			noSymbols:   true,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldNoLowercase := genNoLowercase
			oldNoUppercase := genNoUppercase
			oldNoNumbers := genNoNumbers
			oldNoSymbols := genNoSymbols
			oldExclude := genExclude
			defer func() {
				genNoLowercase = oldNoLowercase
				genNoUppercase = oldNoUppercase
				genNoNumbers = oldNoNumbers
				genNoSymbols = oldNoSymbols
				genExclude = oldExclude
			}()

			genNoLowercase = tt.noLowercase
			genNoUppercase = tt.noUppercase
			genNoNumbers = tt.noNumbers
			genNoSymbols = tt.noSymbols
			genExclude = tt.exclude

			charset, err := buildCharset()
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for _, c := range tt.contains {
				if !strings.ContainsRune(charset, c) {
					t.Errorf("charset should contain %q", c)
				}
			}
			for _, c := range tt.notContains {
				if strings.ContainsRune(charset, c) {
					t.Errorf("charset should not contain %q", c)
				}
			}
		})
	}
}

func TestRemoveChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		exclude  string
		expected string
	}{
		{"remove single char", "abcdef", "c", "abdef"},
		{"remove multiple chars", "abcdef", "ace", "bdf"},
		{"remove nothing", "abcdef", "xyz", "abcdef"},
		{"empty exclude", "abcdef", "", "abcdef"},
		{"remove all", "aaa", "a", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := removeChars(tt.input, tt.exclude)
			if result != tt.expected {
				t.Errorf("removeChars(%q, %q) = %q, want %q", tt.input, tt.exclude, result, tt.expected)
			}
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	tests := []struct {
		name    string
		charset string
		length  int
	}{
		{"alphanumeric", charsetLowercase + charsetUppercase + charsetDigits, 24},
		{"minimum length", charsetLowercase, minPasswordLength},
		{"long password", charsetLowercase + charsetUppercase + charsetDigits + charsetSymbols, 64},
		{"digits only", charsetDigits, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			password, err := generatePassword(tt.charset, tt.length)
			if err != nil {
				t.Fatalf("generatePassword failed: %v", err)
			}
			if len(password) != tt.length {
				t.Errorf("password length = %d, want %d", len(password), tt.length)
			}
			for _, c := range password {
				if !strings.ContainsRune(tt.charset, c) {
					t.Errorf("password contains unexpected character: %c", c)
				}
			}
		})
	}
}

func TestGeneratePasswordRandomness(t *testing.T) {
	charset := charsetLowercase + charsetUppercase + charsetDigits
	length := 32
	count := 100

	passwords := make(map[string]bool)
	for i := 0; i < count; i++ {
		password, err := generatePassword(charset, length)
		if err != nil {
			t.Fatalf("generatePassword failed: %v", err)
		}
		if passwords[password] {
			t.Errorf("duplicate password generated: %s", password)
		}
		passwords[password] = true
	}
}

func TestGenerateWordPassphrase(t *testing.T) {
	phrase, err := generateWordPassphrase(5, "-")
	if err != nil {
		t.Fatalf("generateWordPassphrase failed: %v", err)
	}

	words := strings.Split(phrase, "-")
	if len(words) != 5 {
		t.Fatalf("got %d words, want 5", len(words))
	}
	valid := make(map[string]bool, len(passphraseWords))
	for _, w := range passphraseWords {
		valid[w] = true
	}
	for _, w := range words {
		if !valid[w] {
			t.Errorf("word %q not in the word list", w)
		}
	}

	// Different separators work too.
	phrase, err = generateWordPassphrase(3, ".")
	if err != nil {
		t.Fatalf("generateWordPassphrase failed: %v", err)
	}
	if len(strings.Split(phrase, ".")) != 3 {
		t.Errorf("got %q, want 3 dot-separated words", phrase)
	}
}

func TestPassphraseWordList(t *testing.T) {
	if len(passphraseWords) != 256 {
		t.Errorf("word list has %d entries, want 256", len(passphraseWords))
	}
	seen := make(map[string]bool)
	for _, w := range passphraseWords {
		if seen[w] {
			t.Errorf("duplicate word in list: %s", w)
		}
		seen[w] = true
		if w != strings.ToLower(w) {
			t.Errorf("word %q is not lowercase", w)
		}
	}
}

func TestCharsetConstants(t *testing.T) {
	if len(charsetLowercase) != 26 {
		t.Errorf("charsetLowercase should have 26 characters, got %d", len(charsetLowercase))
	}
	if len(charsetUppercase) != 26 {
		t.Errorf("charsetUppercase should have 26 characters, got %d", len(charsetUppercase))
	}
	if len(charsetDigits) != 10 {
		t.Errorf("charsetDigits should have 10 characters, got %d", len(charsetDigits))
	}

	for name, charset := range map[string]string{
		"lowercase": charsetLowercase,
		"uppercase": charsetUppercase,
		"digits":    charsetDigits,
		"symbols":   charsetSymbols,
	} {
		seen := make(map[rune]bool)
		for _, c := range charset {
			if seen[c] {
				t.Errorf("%s charset has duplicate character: %c", name, c)
			}
			seen[c] = true
		}
	}
}

func TestUniqueTitle(t *testing.T) {
	taken := map[string]bool{
		"github":     true,
		"github (2)": true,
	}

	if got := uniqueTitle("GitLab", taken); got != "GitLab" {
		t.Errorf("uniqueTitle(GitLab) = %q, want GitLab", got)
	}
	if got := uniqueTitle("GitHub", taken); got != "GitHub (3)" {
		t.Errorf("uniqueTitle(GitHub) = %q, want GitHub (3)", got)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "24h", want: "24h0m0s"},
		{in: "30d", want: "720h0m0s"},
		{in: "2w", want: "336h0m0s"},
		{in: "1y", want: "8760h0m0s"},
		{in: "90m", want: "64800h0m0s"},
		{in: "x", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := parseDuration(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseDuration(%q) = %v, want error", tt.in, d)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDuration(%q): %v", tt.in, err)
			}
			if d.String() != tt.want {
				t.Errorf("parseDuration(%q) = %s, want %s", tt.in, d, tt.want)
			}
		})
	}
}
