// Package jsonrpc implements JSON-RPC 2.0 messages and the two stream framings used by
// language servers (Content-Length headers) and MCP servers over stdio (one message per line).
package jsonrpc
