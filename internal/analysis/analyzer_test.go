package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeCounts(t *testing.T) {
	tests := []struct {
		name string
		code string
		want Report
	}{
		{
			name: "empty input",
			code: "",
			want: Report{},
		},
		{
			name: "single loop",
			code: "for (let i = 0; i < 5; i++) { sum += i; }",
			want: Report{Loops: 1, NestedDepth: 1, Score: 4.5},
		},
		{
			name: "conditionals",
			code: "if (x) { a(); } else { b(); }",
			want: Report{Conditions: 2, NestedDepth: 1, Score: 5.5},
		},
		{
			name: "arrow and function keyword",
			code: "const f = () => 1; function g() { return 2; }",
			want: Report{Functions: 2, NestedDepth: 1, Score: 5.5},
		},
		{
			name: "async heavy",
			code: "async function load() { await fetch(url); }",
			want: Report{Functions: 1, AsyncOps: 3, NestedDepth: 1, Score: 15.5},
		},
		{
			name: "imports",
			code: "import x from 'y';\nconst z = require('z');",
			want: Report{Imports: 2, Score: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Analyze(tt.code))
		})
	}
}

func TestAnalyzeNestedDepth(t *testing.T) {
	code := "function a() { if (x) { while (y) { z(); } } }"
	r := Analyze(code)

	assert.Equal(t, 3, r.NestedDepth)
	// Unbalanced braces must not underflow.
	assert.Equal(t, 0, Analyze("}}}").NestedDepth)
}

func TestTimeoutScaling(t *testing.T) {
	base := 5 * time.Second

	// Score below 10 keeps the base timeout.
	assert.Equal(t, base, Timeout(Report{Score: 4.5}, base))
	assert.Equal(t, base, Timeout(Report{}, base))

	// Score of 20 doubles it.
	assert.Equal(t, 10*time.Second, Timeout(Report{Score: 20}, base))

	// A pathological score is capped.
	assert.Equal(t, MaxTimeout, Timeout(Report{Score: 1e6}, base))
}

func TestTimeoutMonotonic(t *testing.T) {
	base := 2 * time.Second
	simple := Analyze("1 + 1")
	complex := Analyze("async function f() { for (;;) { await g(); } }")

	assert.Greater(t, complex.Score, simple.Score)
	assert.GreaterOrEqual(t, Timeout(complex, base), Timeout(simple, base))
	assert.LessOrEqual(t, Timeout(complex, base), MaxTimeout)
}
