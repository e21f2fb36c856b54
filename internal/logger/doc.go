// Package logger provides structured logging backed by charmbracelet/log.
//
// Components receive a Logger explicitly or pull one from a context with
// FromContext. Output defaults to stderr because stdout carries the MCP
// stdio transport.
package logger
