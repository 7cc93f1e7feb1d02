package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	fmt.Println("🧪 Testing SheetTrack MCP server")
	fmt.Println("================================")

	serverPath := "./bin/sheettrack-mcp-server"
	if p := os.Getenv("SHEETTRACK_MCP_SERVER_PATH"); p != "" {
		serverPath = p
	}
	if _, err := os.Stat(serverPath); err != nil {
		fmt.Printf("❌ Server binary not found at %s\n", serverPath)
		fmt.Println("💡 Build it first: go build -o bin/sheettrack-mcp-server ./cmd/sheettrack-mcp-server")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, serverPath)
	cmd.Env = os.Environ()

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "sheettrack-mcp-check",
		Version: "1.0.0",
	}, nil)

	fmt.Printf("🔗 Starting %s over stdio...\n", serverPath)
	session, err := client.Connect(ctx, mcp.NewCommandTransport(cmd))
	if err != nil {
		fmt.Printf("❌ Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()
	fmt.Println("✅ Connected")

	steps := []struct {
		title string
		tool  string
		args  map[string]any
	}{
		{"📊 Stats before", "sheet_stats", map[string]any{}},
		{"📝 Adding test rows", "sheet_add_rows", map[string]any{"count": 3}},
		{"🔍 Listing new rows", "sheet_list_rows", map[string]any{"view": "new", "limit": 10}},
		{"🚀 Running tracker", "sheet_run_tracker", map[string]any{}},
		{"📊 Stats after", "sheet_stats", map[string]any{"format": "json"}},
	}

	failed := 0
	for _, step := range steps {
		fmt.Printf("\n%s (%s)...\n", step.title, step.tool)
		text, err := callTool(ctx, session, step.tool, step.args)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			failed++
			continue
		}
		fmt.Println(text)
	}

	if failed > 0 {
		fmt.Printf("\n❌ %d of %d steps failed\n", failed, len(steps))
		os.Exit(1)
	}
	fmt.Println("\n🎉 SheetTrack MCP server is working correctly")
}

func callTool(ctx context.Context, session *mcp.ClientSession, name string, args map[string]any) (string, error) {
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}

	var text string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			text += tc.Text
		}
	}
	if result.IsError {
		return "", fmt.Errorf("%s returned error: %s", name, text)
	}
	return text, nil
}
