package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petrel-dev/mcp-registry/internal/config"
	"github.com/petrel-dev/mcp-registry/internal/manager"
	"github.com/petrel-dev/mcp-registry/internal/registry"
	"github.com/petrel-dev/mcp-registry/internal/repository"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-discover every registered server's capabilities once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerifyAll(cmd.Context())
		},
	}
}

// runVerifyAll re-runs discovery for every registered server using the same
// Registry.Verify path the HTTP surface's /servers/{id}/verify route does,
// so operators can force a full refresh from a cron job without going
// through the gateway.
func runVerifyAll(ctx context.Context) error {
	cfg := config.FromEnv()

	store, err := repository.Open(ctx, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("verify: open store: %w", err)
	}
	defer store.Close()

	conns := manager.New(store, cfg.IdleTimeout, cfg.SweepInterval)
	defer conns.Shutdown(ctx)
	reg := registry.New(store, conns)

	recs, err := reg.List(ctx, "", "")
	if err != nil {
		return fmt.Errorf("verify: list servers: %w", err)
	}

	var failures int
	for _, rec := range recs {
		verified, err := reg.Verify(ctx, rec.ID)
		if err != nil {
			failures++
			fmt.Printf("%s (%s): verify failed: %v\n", rec.ID, rec.Name, err)
			continue
		}
		fmt.Printf("%s (%s): %s\n", verified.ID, verified.Name, verified.Status)
	}

	if failures > 0 {
		return fmt.Errorf("verify: %d of %d servers failed", failures, len(recs))
	}
	return nil
}
