package fileops

import (
	"fmt"
	"strings"
)

// diffLineLimit bounds the LCS table; beyond it the diff is omitted rather
// than burning quadratic memory on a huge file.
const diffLineLimit = 2000

// unifiedDiff renders a line diff between two versions of a file. It is a
// review aid, not a patch format: context lines outside changed regions are
// collapsed.
func unifiedDiff(original, modified, filename string) string {
	if original == modified {
		return ""
	}
	a := strings.Split(original, "\n")
	b := strings.Split(modified, "\n")
	if len(a) > diffLineLimit || len(b) > diffLineLimit {
		return fmt.Sprintf("--- %s (original)\n+++ %s (modified)\n(diff omitted: file too large)", filename, filename)
	}

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s (original)\n+++ %s (modified)\n", filename, filename)
	for _, line := range diffLines(a, b) {
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return strings.TrimSuffix(out.String(), "\n")
}

// diffLines walks the longest-common-subsequence table to emit "-", "+",
// and "  " prefixed lines, skipping long unchanged runs.
func diffLines(a, b []string) []string {
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var lines []string
	unchanged := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			if unchanged < 2 {
				lines = append(lines, "  "+a[i])
			} else if unchanged == 2 {
				lines = append(lines, "  ...")
			}
			unchanged++
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			lines = append(lines, "- "+a[i])
			unchanged = 0
			i++
		default:
			lines = append(lines, "+ "+b[j])
			unchanged = 0
			j++
		}
	}
	for ; i < len(a); i++ {
		lines = append(lines, "- "+a[i])
	}
	for ; j < len(b); j++ {
		lines = append(lines, "+ "+b[j])
	}
	return lines
}
