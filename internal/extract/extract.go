// Package extract recovers a structured audit result from the free-text
// response of a scoring service.
//
// Extraction has two steps. Normalize removes wrapping such as markdown code
// fences, and Parse reads the JSON object permissively. Missing or oddly
// typed fields fall back to defaults; only text without a parseable object
// is a failure.
package extract

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/fentz26/supportaudit/internal/models"
)

// Extract normalizes raw and parses it. A non-nil error is always a *Failure.
func Extract(raw string) (models.AuditResult, error) {
	return Parse(Normalize(raw))
}

// Parse reads an audit result from text holding a single JSON object. When
// the whole text is not an object, the outermost {...} span is tried once.
func Parse(text string) (models.AuditResult, error) {
	data, ok := objectBytes(text)
	if !ok {
		if strings.TrimSpace(text) == "" {
			return models.AuditResult{}, Malformed("empty response")
		}
		return models.AuditResult{}, Malformed("no JSON object found")
	}

	res := models.NewAuditResult()
	if v, typ, _, err := jsonparser.Get(data, "score"); err == nil {
		res.Score = toInt(v, typ)
	}
	res.Breakdown = readBreakdown(data)
	res.Violations = readList(data, "violations")
	res.Suggestions = readList(data, "suggestions")
	res.Summary = readString(data, "summary")
	return res, nil
}

func objectBytes(text string) ([]byte, bool) {
	if b := []byte(text); isObject(b) {
		return b, true
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	b := []byte(text[start : end+1])
	if !isObject(b) {
		return nil, false
	}
	return b, true
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}

// toInt coerces numbers and numeric strings; anything else is 0.
func toInt(v []byte, typ jsonparser.ValueType) int {
	switch typ {
	case jsonparser.Number:
		if n, err := jsonparser.ParseInt(v); err == nil {
			return clampInt(float64(n))
		}
		if f, err := jsonparser.ParseFloat(v); err == nil {
			return clampInt(f)
		}
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		if err != nil {
			return 0
		}
		s = strings.TrimSpace(s)
		if n, err := strconv.Atoi(s); err == nil {
			return clampInt(float64(n))
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return clampInt(f)
		}
	}
	return 0
}

func clampInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

func readBreakdown(data []byte) map[models.Dimension]int {
	out := map[models.Dimension]int{}
	v, typ, _, err := jsonparser.Get(data, "breakdown")
	if err != nil || typ != jsonparser.Object {
		return out
	}
	_ = jsonparser.ObjectEach(v, func(key, value []byte, vt jsonparser.ValueType, _ int) error {
		name := strings.ToLower(strings.TrimSpace(string(key)))
		if models.IsDimension(name) {
			out[models.Dimension(name)] = toInt(value, vt)
		}
		return nil
	})
	return out
}

// readList accepts an array or a lone string. Every array element is kept
// in order, so a list of blanks still counts as violations: strings are
// trimmed and other elements keep their raw JSON text ("null" included).
// A lone empty string is no entry.
func readList(data []byte, key string) []string {
	out := []string{}
	v, typ, _, err := jsonparser.Get(data, key)
	if err != nil {
		return out
	}
	switch typ {
	case jsonparser.Array:
		_, _ = jsonparser.ArrayEach(v, func(item []byte, it jsonparser.ValueType, _ int, _ error) {
			out = append(out, itemText(item, it))
		})
	case jsonparser.String:
		if len(v) > 0 {
			out = append(out, itemText(v, typ))
		}
	}
	return out
}

func itemText(v []byte, typ jsonparser.ValueType) string {
	switch typ {
	case jsonparser.Null:
		return "null"
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		if err != nil {
			s = string(v)
		}
		return strings.TrimSpace(s)
	default:
		return string(v)
	}
}

func readString(data []byte, key string) string {
	v, typ, _, err := jsonparser.Get(data, key)
	if err != nil || typ == jsonparser.Null {
		return ""
	}
	return itemText(v, typ)
}
