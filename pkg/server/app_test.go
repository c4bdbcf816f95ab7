package server

import (
	"context"
	"testing"
	"time"

	"SessionLens/pkg/config"
	xhttp "SessionLens/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeStopsOnCancel(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Server.ShutdownTimeout = 2 * time.Second

	srv := xhttp.NewServer(nil, nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetrics(nil, ""))
	app := New(cfg, nil, nil, srv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServeWithoutServer(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	assert.Error(t, New(cfg, nil, nil, nil, nil).Serve(context.Background()))
}
