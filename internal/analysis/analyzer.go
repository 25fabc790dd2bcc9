package analysis

import (
	"regexp"
	"time"
)

// MaxTimeout is the absolute ceiling for adaptive timeouts. A pathological
// complexity score must never starve the whole queue.
const MaxTimeout = 30 * time.Second

// Report holds the heuristic complexity breakdown for a source sample.
type Report struct {
	Loops       int     `json:"loops"`
	Conditions  int     `json:"conditions"`
	Functions   int     `json:"functions"`
	AsyncOps    int     `json:"async_ops"`
	Imports     int     `json:"imports"`
	NestedDepth int     `json:"nested_depth"`
	Score       float64 `json:"score"`
}

var (
	loopPattern      = regexp.MustCompile(`\b(for|while|do)\b`)
	conditionPattern = regexp.MustCompile(`\b(if|else|switch|case)\b`)
	functionPattern  = regexp.MustCompile(`\bfunction\b|=>`)
	asyncPattern     = regexp.MustCompile(`\b(async|await|Promise|setTimeout|setInterval|fetch)\b`)
	importPattern    = regexp.MustCompile(`\bimport\b|\brequire\s*\(`)
)

// Analyze scans source text and produces a complexity report.
func Analyze(code string) Report {
	r := Report{
		Loops:       len(loopPattern.FindAllStringIndex(code, -1)),
		Conditions:  len(conditionPattern.FindAllStringIndex(code, -1)),
		Functions:   len(functionPattern.FindAllStringIndex(code, -1)),
		AsyncOps:    len(asyncPattern.FindAllStringIndex(code, -1)),
		Imports:     len(importPattern.FindAllStringIndex(code, -1)),
		NestedDepth: maxNesting(code),
	}

	r.Score = float64(r.Loops)*3 +
		float64(r.Conditions)*2 +
		float64(r.Functions)*2 +
		float64(r.AsyncOps)*4 +
		float64(r.Imports)*2 +
		float64(r.NestedDepth)*1.5

	return r
}

// maxNesting tracks the running maximum of the brace nesting level.
func maxNesting(code string) int {
	depth, max := 0, 0
	for _, c := range code {
		switch c {
		case '{':
			depth++
			if depth > max {
				max = depth
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return max
}

// Timeout computes the adaptive execution deadline for a report.
// The multiplier is max(1, score/10), so simple snippets keep the base
// timeout and async-heavy ones get proportionally more, capped at MaxTimeout.
func Timeout(r Report, base time.Duration) time.Duration {
	mult := r.Score / 10
	if mult < 1 {
		mult = 1
	}

	d := time.Duration(float64(base) * mult)
	if d > MaxTimeout {
		d = MaxTimeout
	}
	return d
}
