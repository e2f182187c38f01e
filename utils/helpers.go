package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// FormatTime renders seconds as mm:ss for human-facing output.
func FormatTime(sec float64) string {
	sec = math.Max(sec, 0)
	m := int(sec) / 60
	s := int(sec) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}

// TruncateWords caps s at n whitespace-separated words.
func TruncateWords(s string, n int) string {
	toks := strings.Fields(s)
	if len(toks) <= n {
		return s
	}
	return strings.Join(toks[:n], " ") + "..."
}

// MustJSON renders v as indented JSON for console dumps.
func MustJSON(v any) []byte {
	b, _ := json.MarshalIndent(v, "", "  ")
	return b
}
