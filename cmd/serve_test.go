package cmd

import (
	"testing"

	"github.com/xolan/mondo/internal/config"
)

func TestServe_RejectsRemoteBackend(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Store.Backend = config.BackendRemote
	env.cfg.Store.RemoteURL = "http://localhost:8080"

	env.run(t, "serve")
	env.expectFailure(t, "Cannot serve a remote store")
}

func TestServe_BadAddress(t *testing.T) {
	env := newTestEnv(t)

	env.run(t, "serve", "--addr", "not-an-address")
	env.expectFailure(t, "Server stopped")
}
