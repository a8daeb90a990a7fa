// Package logs reads director log output for the CLI.
//
// StreamClient pages through the in-memory log stream of a running
// `director serve` over /api/logs. Tail reads the on-disk log file when no
// server is listening.
package logs
