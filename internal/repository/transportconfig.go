package repository

import (
	"encoding/json"
	"fmt"

	"github.com/petrel-dev/mcp-registry/internal/transport"
)

// TransportConfig decodes the stored transport fields back into the shape
// internal/transport needs to reopen a channel to this server.
func (r *ServerRecord) TransportConfig() (transport.Config, error) {
	var args []string
	if err := json.Unmarshal([]byte(r.ArgsJSON), &args); err != nil {
		return transport.Config{}, fmt.Errorf("repository: decoding stored args: %w", err)
	}
	var env map[string]string
	if err := json.Unmarshal([]byte(r.EnvJSON), &env); err != nil {
		return transport.Config{}, fmt.Errorf("repository: decoding stored env: %w", err)
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(r.HeadersJSON), &headers); err != nil {
		return transport.Config{}, fmt.Errorf("repository: decoding stored headers: %w", err)
	}

	return transport.Config{
		Kind:    transport.Kind(r.Transport),
		Command: r.Command,
		Args:    args,
		Env:     env,
		URL:     r.URL,
		Headers: headers,
	}, nil
}
