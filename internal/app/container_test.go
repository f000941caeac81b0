package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/roomchat/internal/config"
	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Setenv("ROOMCHAT_STORE_BACKEND", storage.BackendMemory)
	t.Setenv("ROOMCHAT_STORE_DIR", t.TempDir())
	t.Setenv("ROOMCHAT_CACHE_LIMIT", "3")
	cfg, err := config.Parse()
	require.NoError(t, err)
	return cfg
}

func TestApp_WiresServices(t *testing.T) {
	a := New(testConfig(t))
	defer a.Close()

	kv, err := a.KV()
	require.NoError(t, err)
	again, err := a.KV()
	require.NoError(t, err)
	assert.Same(t, kv, again, "services are singletons")

	c, err := a.Cache()
	require.NoError(t, err)
	msgs := []domain.Message{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	c.Save(context.Background(), "1234", msgs)
	assert.Equal(t, msgs[1:], c.Load(context.Background(), "1234"), "configured limit applies")

	auth, err := a.Auth()
	require.NoError(t, err)
	assert.False(t, auth.Context().IsAuthenticated)

	deps, err := a.ChatDependencies()
	require.NoError(t, err)
	assert.NotNil(t, deps.Cache)
	assert.NotNil(t, deps.Connect)
	assert.NotNil(t, deps.Publisher)
	assert.Len(t, a.ChatOptions(), 1)
}

func TestApp_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreBackend = "floppy"
	a := New(cfg)
	defer a.Close()

	_, err := a.Cache()
	assert.Error(t, err)
}
