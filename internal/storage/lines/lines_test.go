package lines

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"single without newline", "abc", []string{"abc"}},
		{"single with newline", "abc\n", []string{"abc\n"}},
		{"several", "a\nb\nc", []string{"a\n", "b\n", "c"}},
		{"blank lines", "a\n\nb\n", []string{"a\n", "\n", "b\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Split([]byte(tt.in)))
		})
	}
}
