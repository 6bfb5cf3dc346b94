package main

import (
	"fmt"
	"io"
	"os"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// console receives progress and status lines. Stderr by default so stdout
// stays clean for answers and piped output; tests swap in a buffer.
var console io.Writer = os.Stderr

func colorize(code, text string) string {
	if noColor {
		return text
	}
	return code + text + ansiReset
}

// glyphLine prints a colored marker glyph followed by the uncolored
// message, one line per call.
func glyphLine(code, glyph, format string, args ...any) {
	fmt.Fprintf(console, "%s %s\n", colorize(code, glyph), fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) {
	glyphLine(ansiGreen, "✔", format, args...)
}

func printError(format string, args ...any) {
	glyphLine(ansiRed, "✖", format, args...)
}

func printWarning(format string, args ...any) {
	glyphLine(ansiYellow, "!", format, args...)
}

func printStep(format string, args ...any) {
	glyphLine(ansiCyan, "»", format, args...)
}

// printStatus emits one aligned "label: value" status line.
func printStatus(label string, format string, args ...any) {
	padded := fmt.Sprintf("%-14s", label+":")
	fmt.Fprintf(console, "  %s %s\n", colorize(ansiBold, padded), fmt.Sprintf(format, args...))
}
