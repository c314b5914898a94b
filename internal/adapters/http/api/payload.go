package api

import (
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const maxBodyBytes = 1 << 20

// payload is a loosely parsed JSON request body. A missing, malformed or
// non-object body behaves as {}.
type payload struct {
	root gjson.Result
}

func readPayload(r *http.Request) payload {
	if r.Body == nil {
		return payload{}
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || !gjson.ValidBytes(b) {
		return payload{}
	}
	root := gjson.ParseBytes(b)
	if !root.IsObject() {
		return payload{}
	}
	return payload{root: root}
}

func (p payload) get(key string) gjson.Result {
	if !p.root.IsObject() {
		return gjson.Result{}
	}
	return p.root.Get(key)
}

// has reports whether key is present, null included.
func (p payload) has(key string) bool {
	return p.get(key).Exists()
}

// id returns a trimmed string field, "" for any other type.
func (p payload) id(key string) string {
	v := p.get(key)
	if v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.Str)
}

// text returns the field converted to a string; missing and null give "".
func (p payload) text(key string) string {
	return toText(p.get(key))
}

// number returns the field coerced to a number; NaN when it has none.
func (p payload) number(key string) float64 {
	return toNumber(p.get(key))
}

// truthy reports whether the field is truthy: false, 0, NaN, "", null and
// missing are not.
func (p payload) truthy(key string) bool {
	v := p.get(key)
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case gjson.String:
		return v.Str != ""
	default:
		return true
	}
}

func toText(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.False:
		return "false"
	case gjson.True:
		return "true"
	case gjson.Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case gjson.String:
		return v.Str
	}
	if v.IsArray() {
		parts := make([]string, 0)
		for _, e := range v.Array() {
			parts = append(parts, toText(e))
		}
		return strings.Join(parts, ",")
	}
	return "[object Object]"
}

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func toNumber(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return v.Num
	case gjson.True:
		return 1
	case gjson.False:
		return 0
	case gjson.Null:
		if v.Exists() {
			return 0
		}
		return math.NaN()
	case gjson.String:
		return parseNumber(v.Str)
	default:
		return math.NaN()
	}
}

// parseNumber converts numeric text: blank is 0, 0x/0o/0b prefixes select a
// base, Infinity is accepted, anything else that is not decimal is NaN.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	if !decimalPattern.MatchString(s) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}
