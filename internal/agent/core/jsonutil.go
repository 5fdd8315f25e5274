package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedBlockPattern   = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\s*```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

var errNoJSONObject = errors.New("no JSON object in model output")

// stripFences removes a Markdown code fence wrapping the model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fencedBlockPattern.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		kept := lines[:0]
		for _, l := range lines {
			if strings.HasPrefix(strings.TrimSpace(l), "```") {
				continue
			}
			kept = append(kept, l)
		}
		return strings.TrimSpace(strings.Join(kept, "\n"))
	}
	return s
}

// extractFirstJSON finds the first balanced top-level JSON object in s,
// ignoring braces inside string literals. It returns "" when none exists.
func extractFirstJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// decodeObject turns free-form model output into a top-level JSON object.
func decodeObject(text string) (map[string]json.RawMessage, error) {
	body := stripFences(text)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err == nil && obj != nil {
		return obj, nil
	}
	raw := extractFirstJSON(body)
	if raw == "" {
		return nil, errNoJSONObject
	}
	raw = trailingCommaPattern.ReplaceAllString(raw, "$1")
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("parse model JSON: %w", err)
	}
	if obj == nil {
		return nil, errNoJSONObject
	}
	return obj, nil
}

// fieldDecoder decodes individual keys of an object into typed targets and
// keeps going past malformed keys, recording which ones were skipped.
type fieldDecoder struct {
	obj     map[string]json.RawMessage
	found   int
	skipped []string
}

func (d *fieldDecoder) field(key string, target any) {
	raw, ok := d.obj[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return
	}
	if err := json.Unmarshal(raw, target); err != nil {
		d.skipped = append(d.skipped, key)
		return
	}
	d.found++
}

// stringList accepts either a JSON array of strings or a single string.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var arr []any
	if err := json.Unmarshal(b, &arr); err == nil {
		out := make([]string, 0, len(arr))
		for _, v := range arr {
			switch t := v.(type) {
			case string:
				if s := strings.TrimSpace(t); s != "" {
					out = append(out, s)
				}
			case nil:
			default:
				out = append(out, strings.TrimSpace(fmt.Sprint(t)))
			}
		}
		*l = out
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s = strings.TrimSpace(s); s != "" {
		*l = []string{s}
	} else {
		*l = nil
	}
	return nil
}

// optionalString decodes strings and treats "null", "none" or "unknown" as absent.
type optionalString struct{ v *string }

func (o *optionalString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "none", "unknown", "n/a":
		o.v = nil
	default:
		o.v = &s
	}
	return nil
}
