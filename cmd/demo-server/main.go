// Command demo-server is a minimal downstream MCP server, useful for
// exercising the registry/gateway by hand: it advertises a single "echo"
// tool over streamable HTTP. It is not part of the registry or gateway
// binary; it is a standalone fixture a registration request can point at.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type echoArgs struct {
	Msg string `json:"msg"`
}

func main() {
	addr := flag.String("addr", ":9191", "listen address")
	flag.Parse()

	impl := &mcp.Implementation{Name: "demo-server", Version: "0.1.0"}
	server := mcp.NewServer(impl, &mcp.ServerOptions{HasTools: true})

	tool := &mcp.Tool{
		Name:        "echo",
		Description: "Echo",
		InputSchema: map[string]any{"type": "object"},
	}
	server.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args echoArgs
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: args.Msg}},
		}, nil
	})

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)

	log.SetOutput(os.Stderr)
	log.Printf("demo-server listening on %s", *addr)
	if err := http.ListenAndServe(*addr, handler); err != nil {
		log.Fatal(err)
	}
}
