package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yacoubb/roomhub/room"
)

// Client is a thin MCP client that proxies to the REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools.
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Room Coordinator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Room Coordinator - MCP Interface

This is a thin client that proxies all requests to the REST API server.
The surface is read-only: rooms are created, joined and managed by players
over the WebSocket protocol, and these tools let you observe that state.

AVAILABLE TOOLS:
- list_rooms: List all public rooms with occupancy
- room_info: Get details for a specific room (owner, members, capacity)
- server_stats: Get room, membership and connection counts`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools.
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all public rooms with their occupancy",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_info",
		Description: "Get details for a specific room: owner, members and capacity",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the room to inspect",
				},
			},
			Required: []string{"room_name"},
		},
	}, c.handleRoomInfo)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get room, membership and connection counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStats)
}

// GetMCPServer returns the underlying MCP server for serving.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall performs one REST round trip against the coordinator's API.
func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	requestURL := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, requestURL, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// roomDetail mirrors the single-room REST response.
type roomDetail struct {
	Name              string   `json:"name"`
	Public            bool     `json:"public"`
	PasswordProtected bool     `json:"passwordProtected"`
	MaxPlayers        int      `json:"maxPlayers"`
	Owner             string   `json:"owner"`
	Members           []string `json:"members"`
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var summaries []room.Summary
	if err := c.apiCall("GET", "/api/rooms", nil, &summaries); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(summaries) == 0 {
		return mcp.NewToolResultText("No public rooms."), nil
	}

	result := fmt.Sprintf("Public Rooms (%d):\n\n", len(summaries))
	for _, s := range summaries {
		locked := ""
		if s.PasswordProtected {
			locked = " [password]"
		}
		result += fmt.Sprintf("- %s (%d/%d)%s\n", s.Name, s.CurrentPlayers, s.MaxPlayers, locked)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleRoomInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	roomName, _ := args["room_name"].(string)
	if roomName == "" {
		return mcp.NewToolResultError("room_name is required"), nil
	}

	var detail roomDetail
	if err := c.apiCall("GET", fmt.Sprintf("/api/rooms/%s", url.PathEscape(roomName)), nil, &detail); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomDetail(&detail)), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats map[string]int
	if err := c.apiCall("GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Rooms: %d\nMembers: %d\nConnections: %d\n",
		stats["rooms"], stats["members"], stats["connections"])
	return mcp.NewToolResultText(result), nil
}

func formatRoomDetail(d *roomDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room: %s\n", d.Name)
	fmt.Fprintf(&b, "Owner: %s\n", d.Owner)
	fmt.Fprintf(&b, "Players: %d/%d\n", len(d.Members), d.MaxPlayers)
	fmt.Fprintf(&b, "Public: %v\n", d.Public)
	fmt.Fprintf(&b, "Password protected: %v\n", d.PasswordProtected)
	fmt.Fprintf(&b, "Members: %s\n", strings.Join(d.Members, ", "))
	return b.String()
}
