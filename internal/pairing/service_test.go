package pairing

import (
	"testing"
)

func TestGenerateCode_SixDigits(t *testing.T) {
	code, err := generateCode()
	if err != nil {
		t.Fatalf("generateCode: %v", err)
	}
	if len(code) != codeDigits {
		t.Fatalf("code length = %d, want %d", len(code), codeDigits)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Fatalf("code %q contains non-digit %q", code, c)
		}
	}
}

func TestGenerateCode_Varies(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("expected generateCode to produce varying output across 20 calls")
	}
}

func TestCodeTTL_Matches600Seconds(t *testing.T) {
	if codeTTLSecs != 600 {
		t.Fatalf("codeTTLSecs = %d, want 600", codeTTLSecs)
	}
}
