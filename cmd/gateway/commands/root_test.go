package commands

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"npcgateway/internal/app/ports"
	"npcgateway/internal/config"
	"npcgateway/internal/domain/decision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	if cmd.Use != "gateway" {
		t.Fatalf("Use mismatch: got=%q want=%q", cmd.Use, "gateway")
	}

	want := map[string]bool{"serve": false, "migrate": false, "probe": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("subcommand %q not registered", name)
		}
	}
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("env-file"))
}

func TestMigrate_NonPostgresIsNoop(t *testing.T) {
	t.Setenv("GATEWAY_STORE_DRIVER", "memory")
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"migrate", "--env-file", filepath.Join(t.TempDir(), "none.env")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "has no migrations")
}

func TestOpenStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, closeStore, err := openStore(ctx, config.StoreConfig{
		Driver: config.StoreSQLite,
		Path:   filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	defer closeStore(ctx)

	_, err = store.Append(ctx, ports.DecisionRecord{
		RequesterID: "npc1",
		Timestamp:   time.Now().UTC(),
		Status:      decision.StatusOK,
		Content:     []byte(`{"actions":[]}`),
	})
	require.NoError(t, err)
	recs, err := store.QueryRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "npc1", recs[0].RequesterID)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, _, err := openStore(context.Background(), config.StoreConfig{Driver: "redis"})
	require.Error(t, err)
}

func TestNewBackend(t *testing.T) {
	b, err := newBackend(config.BackendConfig{Driver: config.BackendGenerate, URL: "http://127.0.0.1:1/generate"})
	require.NoError(t, err)
	assert.NotNil(t, b)

	b, err = newBackend(config.BackendConfig{Driver: config.BackendOpenAI, URL: "http://127.0.0.1:1/v1", Model: "m"})
	require.NoError(t, err)
	assert.NotNil(t, b)

	_, err = newBackend(config.BackendConfig{Driver: "grpc"})
	require.Error(t, err)
}

func TestReadPayload(t *testing.T) {
	got, err := readPayload(strings.NewReader("  {\"requesterId\":\"npc1\"}\n"), "-")
	require.NoError(t, err)
	assert.Equal(t, `{"requesterId":"npc1"}`, string(got))

	_, err = readPayload(strings.NewReader("nope"), "-")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "msg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"worldState":{}}`), 0o600))
	got, err = readPayload(nil, path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"worldState":{}}`, string(got))
}

func TestServe_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	t.Setenv("GATEWAY_SERVER_ADDR", addr)
	t.Setenv("GATEWAY_LOGGING_LEVEL", "error")
	cfg, err := config.Load("")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()

	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = c.Close()
		return true
	}, 3*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
