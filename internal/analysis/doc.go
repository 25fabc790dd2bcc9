/*
Package analysis provides static heuristics over JavaScript source text.

# Overview

The analyzer never parses the code: every count is a regex match over
keyword and operator patterns, so it degrades gracefully to zero counts on
empty or malformed input. The resulting score feeds the adaptive execution
timeout, and a fixed denylist flags constructs the engine may refuse to run
under strict security.

# Scoring

The complexity score is a weighted sum:

	loops*3 + conditions*2 + functions*2 + asyncOps*4 + imports*2 + nestedDepth*1.5

Async constructs weigh heaviest because they dominate real wall-clock time
in playground snippets. Nesting depth is the running maximum of the brace
nesting level.

# Guarantees

All functions are pure: no state, no I/O, no failure mode.
*/
package analysis
