// Package redisserver implements the text line-oriented request protocol
// and the TCP server that speaks it.
//
// The package splits into three layers:
//
//   - resp.go: a general reader for length-prefixed command frames
//     (RESP arrays of bulk strings, plus inline commands), and the
//     response writers.
//   - command.go: the closed command grammar PING, ECHO, GET, SET [PX]
//     layered on top of the frame reader, and the dispatcher routing
//     parsed commands to their handlers.
//   - server.go: listeners, the accept loop and the per-connection
//     session loop.
//
// Supported commands:
//   - PING
//   - ECHO <text>
//   - GET <key>
//   - SET <key> <value> [PX <milliseconds>]
package redisserver
