// Package lines splits file contents into lines the way the transports
// return them from GetContentsArray.
package lines

import "strings"

// Split breaks data after each '\n'. Lines keep their terminator; a final
// line without one is kept as is. Empty input yields an empty slice.
func Split(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	out := strings.SplitAfter(string(data), "\n")
	if out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}
