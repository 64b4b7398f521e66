package util

import (
	"strings"
	"testing"
)

func TestHashReader(t *testing.T) {
	got, n, err := HashReader(strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 bytes, got %d", n)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("unexpected digest %s", got)
	}
}
