package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/stretchr/testify/require"

	"github.com/ssvlabs/dvnode/api/handlers"
	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/slashingprotection"
	"github.com/ssvlabs/dvnode/storage/basedb"
	"github.com/ssvlabs/dvnode/storage/kv"
)

type alwaysHealthy struct{}

func (alwaysHealthy) Healthy(context.Context) error { return nil }

func newTestServer(t *testing.T, metrics bool) *httptest.Server {
	logger := logging.TestLogger(t)
	db, err := kv.NewInMemory(logger, basedb.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(logger, ":0",
		&handlers.Node{BeaconNode: alwaysHealthy{}, CoValidators: 4},
		&handlers.SlashingProtection{Store: slashingprotection.New(logger, db), GenesisValidatorsRoot: phase0.Root{0xaa}},
		metrics,
	)
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestRoutes(t *testing.T) {
	ts := newTestServer(t, true)

	code, body := get(t, ts.URL+"/v1/node/health")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"beacon_node":"good"`)

	code, body = get(t, ts.URL+"/v1/slashing-protection")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"interchange_format_version":"5"`)

	code, _ = get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
}

func TestMetricsDisabled(t *testing.T) {
	ts := newTestServer(t, false)
	code, _ := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusNotFound, code)
}

func TestRunStopsWithContext(t *testing.T) {
	logger := logging.TestLogger(t)
	s := New(logger, "127.0.0.1:0", &handlers.Node{BeaconNode: alwaysHealthy{}}, &handlers.SlashingProtection{}, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
}
