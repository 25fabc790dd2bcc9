// Package main is the entry point for the JSForge execution backend.
//
// The service powers an in-browser JavaScript playground: snippets are
// analyzed for complexity and risk, scheduled on a bounded priority
// queue, run inside pooled goja sandboxes, and the results cached by
// source text.
//
// The server provides:
//   - REST API for submitting, cancelling, and inspecting executions
//   - WebSocket streaming of live execution metrics
//   - Prometheus metrics and health endpoints
//   - Runtime-adjustable engine configuration
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML overlay via CONFIG_FILE
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
