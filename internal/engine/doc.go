/*
Package engine orchestrates sandboxed code execution.

# Pipeline

Each request moves through: cache probe, complexity analysis, security
gate, adaptive timeout computation, queue admission, the raced sandbox run,
and result classification. Cache hits short-circuit the whole pipeline.

	caller -> Execute -> [cache] -> [analysis + security] -> queue -> runner -> result

# Contract

Execute never surfaces a Go error: every failure path is converted into a
well-formed Result whose Status reflects the cause and whose Metrics are
always populated (resource fields zeroed on failure). Callers get uniform
structured results, never a raw error.

# Collaborators

The sandboxed runner is an external collaborator behind the Runner
interface; the engine only requires that it honors context cancellation.
The content cache, execution queue, and analyzer are owned internally.
*/
package engine
