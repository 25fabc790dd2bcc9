/*
Package queue provides bounded-concurrency admission control for executions.

Jobs are dispatched by priority (higher first), FIFO within a priority.
At most capacity jobs run at once; every completion triggers exactly one
dispatch attempt, so throughput is capacity-limited but the loop never
stalls while jobs keep completing.

The queue is generic over the job result type and delivers outcomes on a
buffered channel per job, so callers can block, select, or abandon the
result. A job's own failure is logged and delivered to its caller; it never
halts dispatch of the remaining backlog.
*/
package queue
