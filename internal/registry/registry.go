// Package registry is the service layer that ties capability discovery
// (internal/discovery), persistence (internal/repository), and the pooled
// connection manager (internal/manager) into the registration/verification/
// search operations the gateway's HTTP surface exposes.
package registry

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petrel-dev/mcp-registry/internal/config"
	"github.com/petrel-dev/mcp-registry/internal/discovery"
	"github.com/petrel-dev/mcp-registry/internal/manager"
	"github.com/petrel-dev/mcp-registry/internal/mcperr"
	"github.com/petrel-dev/mcp-registry/internal/repository"
	"github.com/petrel-dev/mcp-registry/internal/transport"
)

const discoveryTimeout = 30 * time.Second

// Registry is the service layer. It owns no state of its own beyond
// references to the repository and connection manager.
type Registry struct {
	store *repository.Store
	conns *manager.Manager
}

func New(store *repository.Store, conns *manager.Manager) *Registry {
	return &Registry{store: store, conns: conns}
}

// Request describes a server to register: the caller-supplied transport
// type, description, and transport-specific config.
type Request struct {
	Transport   string
	Description string
	Command     string
	Args        []string
	Env         map[string]string
	URL         string
	Headers     map[string]string
}

// Validate checks the cross-type field requirements from the data model:
// stdio needs a non-empty command, http/sse need a non-empty url.
// Cross-type fields are accepted but ignored, not rejected.
func (r Request) Validate() error {
	switch r.Transport {
	case string(transport.KindStdio):
		if strings.TrimSpace(r.Command) == "" {
			return mcperr.Validation("stdio server requires a non-empty command")
		}
	case string(transport.KindHTTP), string(transport.KindSSE):
		if strings.TrimSpace(r.URL) == "" {
			return mcperr.Validation("%s server requires a non-empty url", r.Transport)
		}
	default:
		return mcperr.Validation("unsupported transport type %q", r.Transport)
	}
	return nil
}

func (r Request) transportConfig() transport.Config {
	return transport.Config{
		Kind:    transport.Kind(r.Transport),
		Command: r.Command,
		Args:    r.Args,
		Env:     r.Env,
		URL:     r.URL,
		Headers: r.Headers,
	}
}

// Register runs discovery once against req's config and, only if it
// succeeds, persists the server and its discovered capabilities. A server
// that fails the transport open or the initialize handshake is never
// written — registration is all-or-nothing.
func (reg *Registry) Register(ctx context.Context, req Request) (*repository.ServerRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	caps, err := discovery.Discover(ctx, req.transportConfig())
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	name := req.Description
	if name == "" {
		name = caps.ServerInfo.Name
	}
	if name == "" {
		name = id
	}

	if err := reg.store.InsertServer(ctx, repository.NewServer{
		ID:          id,
		Name:        name,
		Description: req.Description,
		Transport:   req.Transport,
		Command:     req.Command,
		Args:        req.Args,
		Env:         req.Env,
		URL:         req.URL,
		Headers:     req.Headers,
		Tools:       caps.Tools,
		Resources:   caps.Resources,
		Prompts:     caps.Prompts,
	}); err != nil {
		return nil, err
	}

	return reg.store.GetServer(ctx, id)
}

// Get loads one server record with its capabilities.
func (reg *Registry) Get(ctx context.Context, id string) (*repository.ServerRecord, error) {
	return reg.store.GetServer(ctx, id)
}

// List loads every server matching the given transport/status filters.
func (reg *Registry) List(ctx context.Context, transportKind, status string) ([]repository.ServerRecord, error) {
	return reg.store.ListServers(ctx, repository.ListFilter{Transport: transportKind, Status: status})
}

// Delete removes a server record (cascading its capabilities) and closes
// any live pooled session for it before the call returns, per the
// invariant that a session may exist only while its server record does.
func (reg *Registry) Delete(ctx context.Context, id string) error {
	if err := reg.store.DeleteServer(ctx, id); err != nil {
		return err
	}
	return reg.conns.Close(ctx, id)
}

// Verify rediscovers a server's capabilities and replaces the stored triple
// wholesale on success. Failure flips status to error but leaves the
// existing capabilities and last_verified timestamp untouched.
func (reg *Registry) Verify(ctx context.Context, id string) (*repository.ServerRecord, error) {
	rec, err := reg.store.GetServer(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg, err := rec.TransportConfig()
	if err != nil {
		return nil, mcperr.Internal(err, "decoding stored transport config for %s", id)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	caps, err := discovery.Discover(verifyCtx, cfg)
	if err != nil {
		slog.Warn("registry: verify failed", "server_id", id, "error", err)
		if uerr := reg.store.UpdateStatus(ctx, id, repository.StatusError, false); uerr != nil {
			return nil, uerr
		}
		return reg.store.GetServer(ctx, id)
	}

	if err := reg.store.ReplaceCapabilities(ctx, id, caps.Tools, caps.Resources, caps.Prompts); err != nil {
		return nil, err
	}
	if err := reg.store.UpdateStatus(ctx, id, repository.StatusActive, true); err != nil {
		return nil, err
	}
	return reg.store.GetServer(ctx, id)
}

// Search finds capabilities across every active server.
func (reg *Registry) Search(ctx context.Context, query, kind, transportKind string, limit int) ([]repository.SearchMatch, error) {
	return reg.store.SearchCapabilities(ctx, query, kind, transportKind, limit)
}

// Apply implements seed.Applier: it registers name (using it as the
// description/display name) if not already present, or re-verifies it if
// it is. This lets the seed watcher reconcile a config file against the
// registry using the same Register/Verify paths the HTTP surface uses.
func (reg *Registry) Apply(ctx context.Context, name string, cfg config.ServerConfig) error {
	existing, err := reg.findByName(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		_, err := reg.Verify(ctx, existing.ID)
		return err
	}

	_, err = reg.Register(ctx, Request{
		Transport:   cfg.TransportType(),
		Description: name,
		Command:     cfg.Command,
		Args:        cfg.Args,
		Env:         cfg.Env,
		URL:         cfg.URL,
		Headers:     cfg.Headers,
	})
	return err
}

// Remove implements seed.Applier: it deletes the server named name, if any.
func (reg *Registry) Remove(ctx context.Context, name string) error {
	existing, err := reg.findByName(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return reg.Delete(ctx, existing.ID)
}

func (reg *Registry) findByName(ctx context.Context, name string) (*repository.ServerRecord, error) {
	recs, err := reg.store.ListServers(ctx, repository.ListFilter{})
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.Name == name {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

