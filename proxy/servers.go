package proxy

import (
	"context"
	"time"

	"github.com/saiset-co/sai-proxy/database"
	"github.com/saiset-co/sai-proxy/records"
	"github.com/saiset-co/sai-proxy/types"
)

type Servers struct {
	caches *Caches
	config types.ConfigManager
	now    func() time.Time
}

func NewServers(caches *Caches, config types.ConfigManager) *Servers {
	return &Servers{
		caches: caches,
		config: config,
		now:    time.Now,
	}
}

func (s *Servers) Get(ctx context.Context, name string) (*records.ServerData, error) {
	key := database.NormalizeName(name)
	if key == "" {
		return nil, types.ErrServerNameEmpty
	}
	return s.caches.Servers.Get(ctx, key)
}

// Connect counts a player connection to the named server. The server
// matching the configured hub name is flagged as the hub.
func (s *Servers) Connect(ctx context.Context, name string) (*records.ServerData, error) {
	data, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	data.RecordConnection(s.now())
	if hub := s.hub(); hub != "" && database.NormalizeName(name) == hub {
		data.SetHub(true)
	}

	return data, nil
}

func (s *Servers) hub() string {
	cfg := s.config.GetConfig()
	if cfg == nil || cfg.Proxy == nil {
		return ""
	}
	return database.NormalizeName(cfg.Proxy.Hub)
}
