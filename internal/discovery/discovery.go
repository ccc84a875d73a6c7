// Package discovery performs the one-shot open/initialize/list/close
// sequence used when a server is first registered: it never joins the
// connection pool, it just reports what a server offers.
package discovery

import (
	"context"
	"log/slog"

	"github.com/petrel-dev/mcp-registry/internal/mcp"
	"github.com/petrel-dev/mcp-registry/internal/mcperr"
	"github.com/petrel-dev/mcp-registry/internal/session"
	"github.com/petrel-dev/mcp-registry/internal/transport"
)

// Capabilities is everything learned about a server during discovery.
type Capabilities struct {
	ServerInfo         mcp.ServerInfo
	ServerCapabilities mcp.ServerCapabilities
	Tools              []mcp.Tool
	Resources          []mcp.Resource
	Prompts            []mcp.Prompt
}

// Discover opens a transport against cfg, performs the initialize
// handshake, and lists whichever of tools/resources/prompts the server
// actually advertises. Each list call is best-effort: a server that only
// implements tools is not penalized for lacking resources/list, matching
// the try-each-kind behavior of the original client.
func Discover(ctx context.Context, cfg transport.Config) (*Capabilities, error) {
	tr, err := transport.New(cfg)
	if err != nil {
		return nil, mcperr.Validation("discovery: %v", err)
	}

	sess, err := session.Open(ctx, tr)
	if err != nil {
		return nil, err
	}
	defer sess.Close(ctx)

	caps := &Capabilities{
		ServerInfo:         sess.Info,
		ServerCapabilities: sess.Capabilities,
	}

	if tools, err := sess.ListTools(ctx); err != nil {
		slog.Debug("discovery: tools/list unavailable", "error", err)
	} else {
		caps.Tools = tools
	}

	if resources, err := sess.ListResources(ctx); err != nil {
		slog.Debug("discovery: resources/list unavailable", "error", err)
	} else {
		caps.Resources = resources
	}

	if prompts, err := sess.ListPrompts(ctx); err != nil {
		slog.Debug("discovery: prompts/list unavailable", "error", err)
	} else {
		caps.Prompts = prompts
	}

	return caps, nil
}
