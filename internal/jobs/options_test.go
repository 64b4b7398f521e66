package jobs

import "testing"

func TestDecodeOptionsIsLenient(t *testing.T) {
	o, err := DecodeOptions([]byte(`{"optimizationLevel":"2","rotatePages":0,"deskew":"on","outputType":" PDFA-1 ","languageHint":"x"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if o.Optimization() != 2 || o.Rotate() || !o.Straighten() || o.Output() != "pdfa-1" {
		t.Fatalf("unexpected options %+v", o.Map())
	}
	if o.Extra["languageHint"] != "x" {
		t.Fatalf("unknown keys should be kept")
	}
}

func TestOptionDefaults(t *testing.T) {
	var o Options
	if o.Optimization() != 1 || !o.Rotate() || o.CleanBackground() || !o.SkipExistingText() || o.Redo() || o.Straighten() || o.Output() != "pdfa" {
		t.Fatalf("unexpected defaults %+v", o.Map())
	}
	if !o.IsZero() {
		t.Fatalf("zero options should report IsZero")
	}
	empty, err := DecodeOptions([]byte("null"))
	if err != nil || !empty.IsZero() {
		t.Fatalf("null blob should decode to zero options")
	}
}

func TestParseOptionsBlankIsEmpty(t *testing.T) {
	o, err := ParseOptions("   ")
	if err != nil || !o.IsZero() {
		t.Fatalf("expected empty options, got %+v %v", o.Map(), err)
	}
}

func TestWithTextLayerDefaultsKeepsOriginal(t *testing.T) {
	redo := true
	orig := Options{RedoOCR: &redo}
	tuned := orig.WithTextLayerDefaults()
	if tuned.Output() != "pdf" || !tuned.Redo() || tuned.SkipText != nil {
		t.Fatalf("unexpected tuned options %+v", tuned.Map())
	}
	if orig.OutputType != nil {
		t.Fatalf("original options were modified")
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "1", "YES", " on "} {
		if !ParseBool(v) {
			t.Fatalf("%q should be true", v)
		}
	}
	for _, v := range []string{"", "false", "0", "nope"} {
		if ParseBool(v) {
			t.Fatalf("%q should be false", v)
		}
	}
}
