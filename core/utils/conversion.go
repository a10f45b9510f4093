package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ToInt converts loosely typed configuration values to int.
// Unparseable values yield def.
func ToInt(val any, def int) int {
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case uint:
		return int(v)
	case uint64:
		return int(v)
	case uint32:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		return def
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
		return def
	default:
		return def
	}
}

// ToString converts scalar values to string. Nil yields "".
func ToString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToStrings converts a list value to a string slice.
// A single string is split on commas; blank entries are dropped.
func ToStrings(val any) []string {
	var out []string
	switch v := val.(type) {
	case nil:
		return nil
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			if s := strings.TrimSpace(ToString(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := strings.TrimSpace(ToString(v)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
