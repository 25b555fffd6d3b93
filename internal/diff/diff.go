// Package diff renders unified diffs for dry runs. It uses
// github.com/pmezard/go-difflib/difflib to produce classic patches
// (---/+++ headers, @@ hunks, lines prefixed with ' ', '-', '+').
package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Options controls patch generation.
type Options struct {
	// Context is the number of unchanged lines shown around hunks.
	// If 0, default to 4.
	Context int

	// MaxBytes is a guardrail on input size (old+new). When exceeded,
	// a placeholder patch is returned and oversize=true.
	// 0 means no limit.
	MaxBytes int
}

// Unified produces a unified patch taking from to to. An empty body
// means the inputs are equal.
func Unified(fromName, toName, from, to string, opt Options) (body string, oversize bool) {
	if opt.MaxBytes > 0 && len(from)+len(to) > opt.MaxBytes {
		return omitted(fromName, toName), true
	}

	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(from),
		B:        splitLinesKeepNL(to),
		FromFile: fromName,
		ToFile:   toName,
		Context:  contextLines(opt),
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return omitted(fromName, toName), false
	}
	return s, false
}

// Added produces a patch introducing the entire content (no old
// version).
func Added(toName, to string, opt Options) (string, bool) {
	if opt.MaxBytes > 0 && len(to) > opt.MaxBytes {
		return omitted("/dev/null", toName), true
	}

	u := difflib.UnifiedDiff{
		A:        []string{},
		B:        splitLinesKeepNL(to),
		FromFile: "/dev/null",
		ToFile:   toName,
		Context:  contextLines(opt),
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return omitted("/dev/null", toName), false
	}
	return s, false
}

func contextLines(opt Options) int {
	if opt.Context <= 0 {
		return 4
	}
	return opt.Context
}

// splitLinesKeepNL splits into lines and keeps newline characters,
// which produces better unified hunks. A file not ending in a newline
// keeps its last chunk bare.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}

// omitted returns a compact placeholder when size limits are exceeded.
func omitted(fromName, toName string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted (oversize)\n", fromName, toName)
}
