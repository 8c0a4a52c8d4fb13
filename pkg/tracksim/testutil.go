package tracksim

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"
)

// StartServer builds a simulator from cfg, enables the configured dataset
// and serves it over TCP, blocking until the server answers its health
// check. It returns the simulator and a stop function. Dataset problems
// surface before anything starts listening.
func StartServer(ctx context.Context, cfg *Config, opts ...Option) (*Simulator, func(context.Context) error, error) {
	sim, err := New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Dataset.Path != "" {
		if err := sim.Enable(cfg.Dataset.Path); err != nil {
			return nil, nil, err
		}
	}
	if err := sim.Start(); err != nil {
		return nil, nil, err
	}
	readyCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sim.WaitReady(readyCtx); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		_ = sim.Shutdown(stopCtx)
		return nil, nil, err
	}
	return sim, sim.Shutdown, nil
}

// StartTestServer starts a simulator for the duration of a test. Sandboxes
// that forbid listening on sockets skip the test instead of failing it.
func StartTestServer(t *testing.T, cfg *Config, opts ...Option) *Simulator {
	t.Helper()
	sim, stop, err := StartServer(t.Context(), cfg, opts...)
	if err != nil {
		if errors.Is(err, syscall.EPERM) {
			t.Skipf("cannot listen on sockets in this environment: %v", err)
		}
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := stop(ctx); err != nil {
			t.Errorf("stop server: %v", err)
		}
	})
	return sim
}
