// Package pms talks to the hotel's property-management system through an
// MCP server. The connection is optional: a nil *Client disables PMS
// lookups and the assistant falls back to escalation.
package pms

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/hostalia/concierge/internal/config"
)

const callTimeout = 30 * time.Second

// Client wraps the MCP connection to the PMS server.
type Client struct {
	client *mcpclient.Client
}

// Connect dials the PMS MCP server over streamable HTTP and performs the
// handshake. Returns (nil, nil) when PMS is not configured.
func Connect(ctx context.Context, cfg config.PMSConfig) (*Client, error) {
	if !cfg.Enabled || cfg.BaseURL == "" {
		return nil, nil
	}

	client, err := mcpclient.NewStreamableHttpClient(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("pms: create client: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pms: start transport: %w", err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{
		Name:    "concierge",
		Version: "1.0.0",
	}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pms: initialize: %w", err)
	}

	slog.Info("pms connected", "url", cfg.BaseURL)
	return &Client{client: client}, nil
}

// Close shuts the MCP connection down.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// CheckAvailability asks the PMS whether rooms are free for the stay.
func (c *Client) CheckAvailability(ctx context.Context, checkIn, checkOut string, guests int) (string, error) {
	return c.call(ctx, "check_availability", map[string]any{
		"check_in":  checkIn,
		"check_out": checkOut,
		"guests":    guests,
	})
}

// QuoteRate asks the PMS for the rate of a stay.
func (c *Client) QuoteRate(ctx context.Context, roomType, checkIn, checkOut string) (string, error) {
	return c.call(ctx, "quote_rate", map[string]any{
		"room_type": roomType,
		"check_in":  checkIn,
		"check_out": checkOut,
	})
}

// call invokes one PMS tool and flattens the text content of the result.
func (c *Client) call(ctx context.Context, tool string, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req := mcpgo.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("pms: call %s: %w", tool, err)
	}
	if result.IsError {
		return "", fmt.Errorf("pms: %s returned an error: %s", tool, flattenContent(result.Content))
	}
	return flattenContent(result.Content), nil
}

func flattenContent(content []mcpgo.Content) string {
	var parts []string
	for _, c := range content {
		if text, ok := c.(mcpgo.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
