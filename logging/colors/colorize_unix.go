//go:build !windows
// +build !windows

package colors

import "fmt"

// enabled determines whether ANSI escape codes are emitted.
var enabled = true

// EnableColor turns ANSI coloring on. Unix terminals are assumed to support it.
func EnableColor() {
	enabled = true
}

// DisableColor turns ANSI coloring off, e.g. when output is redirected or --no-color is provided.
func DisableColor() {
	enabled = false
}

// Colorize returns the string s wrapped in ANSI code c, unless coloring is disabled.
// Source: https://github.com/rs/zerolog/blob/4fff5db29c3403bc26dee9895e12a108aacc0203/console.go
func Colorize(s any, c Color) string {
	if !enabled {
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}
