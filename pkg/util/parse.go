package util

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// ParseYesNo is the single tolerant boolean parser used at every ingestion
// boundary: yes/Yes/y/true/True/1/on are true, no/No/n/false/False/0/off are false.
func ParseYesNo(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case nil:
		return false, fmt.Errorf("empty yes/no value")
	}
	s := strings.ToLower(strings.TrimSpace(cast.ToString(v)))
	switch s {
	case "yes", "y", "true", "t", "1", "on":
		return true, nil
	case "no", "n", "false", "f", "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid yes/no value %q", s)
}

// ParseUnits reads a unit count. Strings are always base 10, so "010" is
// ten; a trailing ".0" is tolerated. Non-string values go through cast.
func ParseUnits(v interface{}) (int, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("empty unit count")
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		return cast.ToIntE(v)
	}
	s = strings.TrimSpace(s)
	if whole, frac, ok := strings.Cut(s, "."); ok && frac != "" && strings.Trim(frac, "0") == "" {
		s = whole
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid unit count %q", s)
	}
	return n, nil
}

// YesNo renders b the way eligibility tables store it.
func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ParseOverrides reads "Platelets=3,Plasma=4" into a map. Malformed pairs are skipped.
func ParseOverrides(raw string) map[string]int {
	out := make(map[string]int)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		n, err := ParseUnits(v)
		if err != nil {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = n
	}
	return out
}
