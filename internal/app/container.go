// Package app wires the client's services together with a samber/do
// container. Services are built lazily on first use and released in reverse
// dependency order by Close.
package app

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/nfrund/roomchat/internal/authapi"
	"github.com/nfrund/roomchat/internal/cache"
	"github.com/nfrund/roomchat/internal/chat"
	"github.com/nfrund/roomchat/internal/config"
	"github.com/nfrund/roomchat/internal/pubsub"
	"github.com/nfrund/roomchat/internal/realtime"
	"github.com/nfrund/roomchat/internal/storage"
)

// App is the client's service container.
type App struct {
	root   *do.RootScope
	Config *config.Config
}

// New registers every client service for cfg. Nothing is opened yet.
func New(cfg *config.Config) *App {
	root := do.New()
	do.ProvideValue(root, cfg)
	do.Provide(root, newKV)
	do.Provide(root, newMessageCache)
	do.Provide(root, newBus)
	do.Provide(root, newCredentialStore)
	do.Provide(root, newAuthClient)
	do.Provide(root, newAuthManager)
	return &App{root: root, Config: cfg}
}

// Close shuts down every service that was built, storage last.
func (a *App) Close() {
	a.root.Shutdown()
}

// KV returns the persistent store.
func (a *App) KV() (storage.KV, error) {
	return do.Invoke[storage.KV](a.root)
}

// Cache returns the message cache.
func (a *App) Cache() (*cache.MessageCache, error) {
	return do.Invoke[*cache.MessageCache](a.root)
}

// Bus returns the in-process event bus session views are published on.
func (a *App) Bus() (*pubsub.WatermillBridge, error) {
	return do.Invoke[*pubsub.WatermillBridge](a.root)
}

// Auth returns the sign-in manager with any stored sign-in restored.
func (a *App) Auth() (*authapi.Manager, error) {
	return do.Invoke[*authapi.Manager](a.root)
}

// AuthClient returns the raw account API client.
func (a *App) AuthClient() (*authapi.Client, error) {
	return do.Invoke[*authapi.Client](a.root)
}

// ChatDependencies assembles what a chat session needs.
func (a *App) ChatDependencies() (chat.Dependencies, error) {
	c, err := a.Cache()
	if err != nil {
		return chat.Dependencies{}, err
	}
	bus, err := a.Bus()
	if err != nil {
		return chat.Dependencies{}, err
	}
	return chat.Dependencies{
		Cache:     c,
		Connect:   chat.RealtimeConnector(realtime.WebsocketDialer{}, a.Config.SocketURL),
		Publisher: bus,
	}, nil
}

// ChatOptions returns the session options taken from configuration.
func (a *App) ChatOptions() []chat.Option {
	return []chat.Option{chat.WithTypingDebounce(a.Config.TypingDebounce)}
}

// kvService lets the container close the store on shutdown.
type kvService struct {
	storage.KV
}

func (s kvService) Shutdown() error {
	return s.Close()
}

func newKV(i do.Injector) (storage.KV, error) {
	cfg := do.MustInvoke[*config.Config](i)
	kv, err := storage.Open(storage.Options{
		Backend:       cfg.StoreBackend,
		Dir:           cfg.StoreDir,
		MaxValueBytes: cfg.StoreMaxValueBytes,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("Opened storage", "backend", cfg.StoreBackend, "dir", cfg.StoreDir)
	return &kvService{KV: kv}, nil
}

func newMessageCache(i do.Injector) (*cache.MessageCache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	kv, err := do.Invoke[storage.KV](i)
	if err != nil {
		return nil, err
	}
	return cache.New(kv, cache.WithTTL(cfg.CacheTTL), cache.WithLimit(cfg.CacheLimit)), nil
}

// newBus holds no external resources, so it is not closed on shutdown.
func newBus(do.Injector) (*pubsub.WatermillBridge, error) {
	return pubsub.NewWatermillBridge(slog.Default(), pubsub.DefaultBufferSize), nil
}

func newCredentialStore(i do.Injector) (*authapi.CredentialStore, error) {
	kv, err := do.Invoke[storage.KV](i)
	if err != nil {
		return nil, err
	}
	return authapi.NewCredentialStore(kv), nil
}

func newAuthClient(i do.Injector) (*authapi.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	store, err := do.Invoke[*authapi.CredentialStore](i)
	if err != nil {
		return nil, err
	}
	return authapi.NewClient(cfg.APIURL, store), nil
}

func newAuthManager(i do.Injector) (*authapi.Manager, error) {
	client, err := do.Invoke[*authapi.Client](i)
	if err != nil {
		return nil, err
	}
	store, err := do.Invoke[*authapi.CredentialStore](i)
	if err != nil {
		return nil, err
	}
	m := authapi.NewManager(client, store)
	m.Restore(context.Background())
	return m, nil
}
