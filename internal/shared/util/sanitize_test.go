package util

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"scan.pdf":                 "scan.pdf",
		"../../etc/passwd":         "passwd",
		`C:\Users\ana\Factură 1.pdf`: "Factur_1.pdf",
		"my report (final).docx":   "my_report_final_.docx",
		".hidden":                  "hidden",
		"   ":                      "upload",
		"..":                       "upload",
		"日本語":                      "upload",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBaseName(t *testing.T) {
	if got := BaseName("folder/sub/a.txt"); got != "a.txt" {
		t.Fatalf("unexpected base %q", got)
	}
	if got := BaseName(`dir\b.pdf`); got != "b.pdf" {
		t.Fatalf("unexpected base %q", got)
	}
	if got := BaseName(""); got != "" {
		t.Fatalf("expected empty base, got %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	s := strings.Repeat("ă", 10)
	if got := TruncateRunes(s, 4); got != "ăăăă" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := TruncateRunes("short", 10); got != "short" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := TruncateRunes("abc", 0); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
