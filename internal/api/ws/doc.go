// Package ws streams live execution metrics to playground clients over
// WebSocket. Clients receive a snapshot on a fixed interval and may send
// "ping" or "metrics" frames for keepalive and on-demand refresh.
package ws
