package flatstore

import (
	"strings"

	"github.com/spf13/cast"
)

// Float parses field as a float. Blank or malformed values give nil.
func Float(r Row, field string) *float64 {
	v := strings.TrimSpace(r[field])
	if v == "" {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	return &f
}

// Int parses field as an int.
func Int(r Row, field string) (int, bool) {
	v := strings.TrimSpace(r[field])
	if v == "" {
		return 0, false
	}
	// cast treats a leading zero as octal
	n, err := cast.ToIntE(strings.TrimLeft(v, "0"))
	if err != nil {
		if strings.Trim(v, "0") == "" {
			return 0, true
		}
		f, ferr := cast.ToFloat64E(v)
		if ferr != nil {
			return 0, false
		}
		return int(f), true
	}
	return n, true
}

// IntOr is Int with a fallback.
func IntOr(r Row, field string, fallback int) int {
	if n, ok := Int(r, field); ok {
		return n
	}
	return fallback
}

// IDValue returns field as an int when it parses as one, else the raw string.
func IDValue(r Row, field string) interface{} {
	if n, ok := Int(r, field); ok {
		return n
	}
	return strings.TrimSpace(r[field])
}
