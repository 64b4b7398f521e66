package jobs

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Output subtypes accepted by the searchable-PDF engine.
var OutputTypes = []string{"pdf", "pdfa", "pdfa-1", "pdfa-2", "pdfa-3"}

// Options are the per-job engine tunables. Unset fields fall back to the
// engine defaults; unknown keys are kept so stored blobs round-trip.
type Options struct {
	OptimizationLevel *int
	RotatePages       *bool
	RemoveBackground  *bool
	SkipText          *bool
	RedoOCR           *bool
	Deskew            *bool
	OutputType        *string
	Extra             map[string]any
}

const (
	keyOptimizationLevel = "optimizationLevel"
	keyRotatePages       = "rotatePages"
	keyRemoveBackground  = "removeBackground"
	keySkipText          = "skipText"
	keyRedoOCR           = "redoOcr"
	keyDeskew            = "deskew"
	keyOutputType        = "outputType"
)

// Optimization returns the optimization level, default 1.
func (o Options) Optimization() int {
	if o.OptimizationLevel == nil {
		return 1
	}
	return *o.OptimizationLevel
}

// Rotate returns whether pages are auto-rotated, default true.
func (o Options) Rotate() bool { return boolOr(o.RotatePages, true) }

// CleanBackground returns whether backgrounds are removed, default false.
func (o Options) CleanBackground() bool { return boolOr(o.RemoveBackground, false) }

// SkipExistingText returns whether pages with text are skipped, default true.
func (o Options) SkipExistingText() bool { return boolOr(o.SkipText, true) }

// Redo returns whether existing OCR is replaced, default false.
func (o Options) Redo() bool { return boolOr(o.RedoOCR, false) }

// Straighten returns whether pages are deskewed, default false.
func (o Options) Straighten() bool { return boolOr(o.Deskew, false) }

// Output returns the output subtype, default "pdfa".
func (o Options) Output() string {
	if o.OutputType == nil || *o.OutputType == "" {
		return "pdfa"
	}
	return *o.OutputType
}

// IsZero reports whether no option was set.
func (o Options) IsZero() bool {
	return o.OptimizationLevel == nil && o.RotatePages == nil && o.RemoveBackground == nil &&
		o.SkipText == nil && o.RedoOCR == nil && o.Deskew == nil && o.OutputType == nil && len(o.Extra) == 0
}

// Map renders the options with their original keys.
func (o Options) Map() map[string]any {
	out := make(map[string]any, len(o.Extra)+7)
	for k, v := range o.Extra {
		out[k] = v
	}
	if o.OptimizationLevel != nil {
		out[keyOptimizationLevel] = *o.OptimizationLevel
	}
	if o.RotatePages != nil {
		out[keyRotatePages] = *o.RotatePages
	}
	if o.RemoveBackground != nil {
		out[keyRemoveBackground] = *o.RemoveBackground
	}
	if o.SkipText != nil {
		out[keySkipText] = *o.SkipText
	}
	if o.RedoOCR != nil {
		out[keyRedoOCR] = *o.RedoOCR
	}
	if o.Deskew != nil {
		out[keyDeskew] = *o.Deskew
	}
	if o.OutputType != nil {
		out[keyOutputType] = *o.OutputType
	}
	return out
}

// MarshalJSON encodes the options as a flat object.
func (o Options) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Map())
}

// UnmarshalJSON decodes leniently; see DecodeOptions.
func (o *Options) UnmarshalJSON(data []byte) error {
	parsed, err := DecodeOptions(data)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// DecodeOptions reads a stored options blob. Values of the wrong type are
// coerced where the intent is clear ("2", "true", 1) and otherwise ignored,
// so rows written by older clients still load.
func DecodeOptions(data []byte) (Options, error) {
	var raw map[string]any
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return Options{}, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Options{}, err
	}
	var o Options
	for k, v := range raw {
		switch k {
		case keyOptimizationLevel:
			if n, ok := toInt(v); ok {
				o.OptimizationLevel = &n
			}
		case keyRotatePages:
			o.RotatePages = toBoolPtr(v)
		case keyRemoveBackground:
			o.RemoveBackground = toBoolPtr(v)
		case keySkipText:
			o.SkipText = toBoolPtr(v)
		case keyRedoOCR:
			o.RedoOCR = toBoolPtr(v)
		case keyDeskew:
			o.Deskew = toBoolPtr(v)
		case keyOutputType:
			if s, ok := v.(string); ok {
				s = strings.ToLower(strings.TrimSpace(s))
				o.OutputType = &s
			}
		default:
			if o.Extra == nil {
				o.Extra = make(map[string]any)
			}
			o.Extra[k] = v
		}
	}
	return o, nil
}

var optionsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		keyOptimizationLevel: map[string]any{"type": "integer", "minimum": 0, "maximum": 3},
		keyRotatePages:       map[string]any{"type": "boolean"},
		keyRemoveBackground:  map[string]any{"type": "boolean"},
		keySkipText:          map[string]any{"type": "boolean"},
		keyRedoOCR:           map[string]any{"type": "boolean"},
		keyDeskew:            map[string]any{"type": "boolean"},
		keyOutputType:        map[string]any{"type": "string", "enum": stringsToAny(OutputTypes)},
	},
}

var compileOptionsSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(optionsSchema)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("options.json", bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return compiler.Compile("options.json")
})

// ParseOptions validates a client-supplied options payload. Blank input
// yields empty options.
func ParseOptions(raw string) (Options, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Options{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return Options{}, errors.Wrapf(ErrInvalidOptions, "malformed JSON: %v", err)
	}
	schema, err := compileOptionsSchema()
	if err != nil {
		return Options{}, errors.Wrap(err, "compile options schema")
	}
	if err := schema.Validate(v); err != nil {
		return Options{}, errors.Wrapf(ErrInvalidOptions, "%v", err)
	}
	o, err := DecodeOptions([]byte(trimmed))
	if err != nil {
		return Options{}, errors.Wrapf(ErrInvalidOptions, "%v", err)
	}
	return o, nil
}

// WithTextLayerDefaults returns a copy tuned for extracting text from a
// scan: plain PDF output and OCR of every page without existing text.
func (o Options) WithTextLayerDefaults() Options {
	c := o.clone()
	plain := "pdf"
	skip := true
	c.OutputType = &plain
	if !c.Redo() {
		c.SkipText = &skip
	}
	return c
}

func (o Options) clone() Options {
	c := o
	if o.Extra != nil {
		c.Extra = make(map[string]any, len(o.Extra))
		for k, v := range o.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toBoolPtr(v any) *bool {
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case float64:
		b = t != 0
	case string:
		b = ParseBool(t)
	default:
		return nil
	}
	return &b
}

// ParseBool accepts true/1/yes/on, case-insensitively.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
