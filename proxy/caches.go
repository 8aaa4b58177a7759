package proxy

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-proxy/cache"
	"github.com/saiset-co/sai-proxy/database"
	"github.com/saiset-co/sai-proxy/records"
	"github.com/saiset-co/sai-proxy/types"
)

const (
	PlayerDataBucket  = "playerData"
	PlayerNamesBucket = "playerNames"
	ServerDataBucket  = "serverData"

	maxPlayerNameLength = 16
	maxServerNameLength = 32
)

// Caches holds the three record caches. It is built once by the service and
// passed to everything that reads or mutates records.
type Caches struct {
	Players *cache.ManagedCache[uuid.UUID, *records.PlayerData]
	Names   *cache.ManagedCache[string, uuid.UUID]
	Servers *cache.ManagedCache[string, *records.ServerData]
}

// NewCaches binds one cache to each record bucket of db.
func NewCaches(db types.Database, dbConfig *types.DatabaseConfig, cachesConfig *types.CachesConfig, logger types.Logger, metrics types.MetricsManager) (*Caches, error) {
	players := database.NewBucket[uuid.UUID, *records.PlayerData](db, PlayerDataBucket,
		database.UUIDKey{},
		database.NewBrotliCodec[*records.PlayerData](database.JSONCodec[records.PlayerData]{}, dbConfig.Compression))

	names := database.NewBucket[string, uuid.UUID](db, PlayerNamesBucket,
		database.NameKey{MaxLength: maxPlayerNameLength},
		database.UUIDCodec{})

	servers := database.NewBucket[string, *records.ServerData](db, ServerDataBucket,
		database.NameKey{MaxLength: maxServerNameLength},
		database.NewBrotliCodec[*records.ServerData](database.JSONCodec[records.ServerData]{}, dbConfig.Compression))

	playerCache, err := cache.New[uuid.UUID, *records.PlayerData](players, cache.Options[uuid.UUID, *records.PlayerData]{
		Name:            PlayerDataBucket,
		Capacity:        cachesConfig.Capacity,
		IdleExpiry:      cachesConfig.IdleExpiry,
		CleanupInterval: cachesConfig.CleanupInterval,
		Default:         records.NewPlayerData,
		KeyString:       uuid.UUID.String,
	}, logger, metrics)
	if err != nil {
		return nil, err
	}

	nameCache, err := cache.New[string, uuid.UUID](names, cache.Options[string, uuid.UUID]{
		Name:            PlayerNamesBucket,
		Capacity:        cachesConfig.Capacity,
		IdleExpiry:      cachesConfig.IdleExpiry,
		CleanupInterval: cachesConfig.CleanupInterval,
		Default:         func() uuid.UUID { return uuid.Nil },
		IsSentinel:      func(id uuid.UUID) bool { return id == uuid.Nil },
		ValidateKey:     names.ValidateKey,
		KeyString:       func(name string) string { return name },
	}, logger, metrics)
	if err != nil {
		_ = playerCache.Close(context.Background())
		return nil, err
	}

	serverCache, err := cache.New[string, *records.ServerData](servers, cache.Options[string, *records.ServerData]{
		Name:            ServerDataBucket,
		Capacity:        cachesConfig.Capacity,
		IdleExpiry:      cachesConfig.IdleExpiry,
		CleanupInterval: cachesConfig.CleanupInterval,
		Default:         records.NewServerData,
		ValidateKey:     servers.ValidateKey,
		KeyString:       func(name string) string { return name },
	}, logger, metrics)
	if err != nil {
		_ = playerCache.Close(context.Background())
		_ = nameCache.Close(context.Background())
		return nil, err
	}

	return &Caches{
		Players: playerCache,
		Names:   nameCache,
		Servers: serverCache,
	}, nil
}

func (c *Caches) All() []types.Cache {
	return []types.Cache{c.Players, c.Names, c.Servers}
}

func (c *Caches) Stats() []types.CacheStats {
	return []types.CacheStats{c.Players.Stats(), c.Names.Stats(), c.Servers.Stats()}
}

// Flush writes back and drops every resident entry of every cache. The
// caches stay open.
func (c *Caches) Flush(ctx context.Context) error {
	return c.each(ctx, func(ctx context.Context, target types.Cache) error {
		return target.InvalidateAll(ctx)
	})
}

// Close closes every cache in parallel. Each cache is flushed completely
// even if another one fails; all failures are returned.
func (c *Caches) Close(ctx context.Context) error {
	return c.each(ctx, func(ctx context.Context, target types.Cache) error {
		return target.Close(ctx)
	})
}

func (c *Caches) each(ctx context.Context, fn func(context.Context, types.Cache) error) error {
	all := c.All()
	errs := make([]error, len(all))

	var g errgroup.Group
	for i, target := range all {
		g.Go(func() error {
			errs[i] = fn(ctx, target)
			return nil
		})
	}
	_ = g.Wait()

	return multierr.Combine(errs...)
}
