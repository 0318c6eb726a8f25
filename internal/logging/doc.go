// Package logging configures structured JSON logging with size-based file
// rotation. Interactive commands log to stderr and ~/.ragcontext/logs;
// the MCP server logs to the file only, since stdout carries the protocol.
package logging
