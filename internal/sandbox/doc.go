/*
Package sandbox provides isolated JavaScript execution on the goja engine.

# Overview

Each Runtime wraps a goja VM with a scrubbed global scope: no require,
process, module, or exports, and timers that are captured rather than
scheduled on the host. Console calls are recorded and returned with the
result instead of reaching any real output.

# Cancellation

A run honors its context: cancellation or deadline expiry interrupts the
VM, so the engine's raced timeout works even against tight loops. The
interrupt message distinguishes timeout from explicit cancellation.

# Async model

setTimeout callbacks are queued during the main script and drained
afterwards, bounded by the caller-supplied async wait budget and callback
limit. A promise returned by the script is resolved from its settled
state; one still pending after the drain is reported as a timeout.

# Pooling

Pool pre-creates runtimes and hands them out per run, resetting each VM
on release so state never leaks between snippets. Pool satisfies the
engine's Runner interface and is the production runner.
*/
package sandbox
