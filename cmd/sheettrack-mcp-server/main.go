package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sheettrack/internal/app"
	"sheettrack/internal/config"
	"sheettrack/internal/mcpserver"
)

const version = "1.0.0"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	a, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("failed to init tracker: %v", err)
	}
	defer a.Close()

	server := mcpserver.NewServer(mcpserver.NewToolServer(a.Tracker, a.Generator), version)

	if cfg.MCPHTTPPort == "" {
		log.Printf("🚀 Starting SheetTrack MCP server on stdio")
		transport := mcp.NewStdioTransport()
		if err := server.Run(context.Background(), transport); err != nil {
			log.Printf("❌ MCP server stopped: %v", err)
		}
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return server }))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("SheetTrack MCP Server is running"))
	})

	srv := &http.Server{
		Addr:    ":" + cfg.MCPHTTPPort,
		Handler: mux,
	}

	go func() {
		log.Printf("🌐 SheetTrack SSE MCP Server listening on http://localhost:%s/mcp", cfg.MCPHTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server failed: %v", err)
		}
	}()

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh

	log.Println("🔌 SheetTrack MCP Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
	}
}
