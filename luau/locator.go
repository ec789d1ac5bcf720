package luau

import (
	"regexp"
	"unicode/utf8"
)

// findFunction returns the byte offset where the textual definition of the
// named function begins, searching at or after from. The pattern is the
// `function` keyword, an optional dotted/qualified prefix, the exact name and
// an open parenthesis. The name is inserted into the pattern as-is; a name
// that breaks the pattern simply fails to locate rather than erroring, and so
// does non-UTF-8 input.
func findFunction(buf []byte, name string, from int) (int, bool) {
	if !utf8.Valid(buf) {
		return 0, false
	}

	re, err := regexp.Compile(`function \s*([A-Za-z0-9_.]+)?` + name + `\(`)
	if err != nil {
		return 0, false
	}

	if from < 0 || from > len(buf) {
		return 0, false
	}

	loc := re.FindIndex(buf[from:])
	if loc == nil {
		return 0, false
	}
	return from + loc[0], true
}
