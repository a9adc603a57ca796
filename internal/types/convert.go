// Package types contains attribute value conversion and shared result types.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cast rule names understood by Coerce.
const (
	RuleInt      = "int"
	RuleFloat    = "float"
	RuleString   = "string"
	RuleBool     = "bool"
	RuleJSON     = "json"
	RuleDatetime = "datetime"
)

var ruleAliases = map[string]string{
	"int":       RuleInt,
	"integer":   RuleInt,
	"float":     RuleFloat,
	"double":    RuleFloat,
	"real":      RuleFloat,
	"decimal":   RuleFloat,
	"string":    RuleString,
	"bool":      RuleBool,
	"boolean":   RuleBool,
	"json":      RuleJSON,
	"array":     RuleJSON,
	"datetime":  RuleDatetime,
	"timestamp": RuleDatetime,
}

// datetimeLayouts are tried in order when parsing datetime strings.
var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// NormalizeRule maps a rule alias to its canonical name. Unknown rules are
// returned unchanged with ok=false.
func NormalizeRule(rule string) (string, bool) {
	canonical, ok := ruleAliases[strings.ToLower(strings.TrimSpace(rule))]
	if !ok {
		return rule, false
	}
	return canonical, true
}

// Coerce converts v according to rule. Nil stays nil and unknown rules pass
// the value through untouched.
func Coerce(rule string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	canonical, ok := NormalizeRule(rule)
	if !ok {
		return v, nil
	}

	switch canonical {
	case RuleInt:
		return ParseInt64(v)
	case RuleFloat:
		return ToFloat64(v)
	case RuleString:
		return ToString(v), nil
	case RuleBool:
		return ToBool(v)
	case RuleJSON:
		return decodeJSON(v)
	case RuleDatetime:
		return ToTime(v)
	}
	return v, nil
}

// ToInt64 converts an interface{} to int64.
// Supports int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, and float64.
func ToInt64(v interface{}) int64 {
	switch i := v.(type) {
	case int64:
		return i
	case int:
		return int64(i)
	case int32:
		return int64(i)
	case int16:
		return int64(i)
	case int8:
		return int64(i)
	case uint:
		return int64(i)
	case uint64:
		return int64(i)
	case uint32:
		return int64(i)
	case uint16:
		return int64(i)
	case uint8:
		return int64(i)
	case float64:
		return int64(i)
	case float32:
		return int64(i)
	default:
		return 0
	}
}

// ParseInt64 is ToInt64 that also accepts numeric strings and byte slices,
// reporting values it cannot convert.
func ParseInt64(v any) (int64, error) {
	switch s := v.(type) {
	case string:
		return parseIntString(s)
	case []byte:
		return parseIntString(string(s))
	case bool:
		if s {
			return 1, nil
		}
		return 0, nil
	}
	if !isNumeric(v) {
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
	return ToInt64(v), nil
}

func parseIntString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %q to int", s)
	}
	return int64(f), nil
}

// ToFloat64 converts numbers and numeric strings to float64.
func ToFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	case string:
		return parseFloatString(f)
	case []byte:
		return parseFloatString(string(f))
	}
	if !isNumeric(v) {
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
	return float64(ToInt64(v)), nil
}

func parseFloatString(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %q to float", s)
	}
	return f, nil
}

// ToString renders v as a string. Byte slices are converted directly.
func ToString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprint(v)
}

// ToBool converts booleans, numbers and the usual string spellings.
func ToBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return parseBoolString(b)
	case []byte:
		return parseBoolString(string(b))
	}
	if !isNumeric(v) {
		return false, fmt.Errorf("cannot convert %T to bool", v)
	}
	return ToInt64(v) != 0, nil
}

func parseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("cannot convert %q to bool", s)
}

// ToTime converts time values and datetime strings.
func ToTime(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		if isNumeric(v) {
			return time.Unix(ToInt64(v), 0).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("cannot convert %T to datetime", v)
	}

	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as datetime", s)
}

func decodeJSON(v any) (any, error) {
	var raw []byte
	switch j := v.(type) {
	case string:
		raw = []byte(j)
	case []byte:
		raw = j
	default:
		// already decoded
		return v, nil
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("cannot decode json attribute: %w", err)
	}
	return out, nil
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
