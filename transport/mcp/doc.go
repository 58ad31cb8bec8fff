// Package mcp exposes the coordinator's read-only inspection surface as MCP
// tools.
//
// The package is a thin client: every tool call is proxied to the REST API,
// so the MCP surface can never observe state the HTTP surface would not
// show. Mutations stay exclusive to the WebSocket protocol.
//
// Tools:
//
//   - list_rooms: public room listing
//   - room_info: detail for one room
//   - server_stats: room, membership and connection counts
package mcp
