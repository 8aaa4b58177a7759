package proxy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-proxy/database"
	"github.com/saiset-co/sai-proxy/records"
	"github.com/saiset-co/sai-proxy/types"
)

type Players struct {
	caches  *Caches
	servers *Servers
	logger  types.Logger
	now     func() time.Time
}

func NewPlayers(caches *Caches, servers *Servers, logger types.Logger) *Players {
	return &Players{
		caches:  caches,
		servers: servers,
		logger:  logger,
		now:     time.Now,
	}
}

func (p *Players) Get(ctx context.Context, id uuid.UUID) (*records.PlayerData, error) {
	return p.caches.Players.Get(ctx, id)
}

// Join records a login: the name now points at id, the target server counts
// a connection and the player record is updated. Names or servers the store
// cannot key are rejected with types.ErrDatabaseKeyInvalid before anything
// is cached.
func (p *Players) Join(ctx context.Context, id uuid.UUID, name, server string) (*records.PlayerData, error) {
	key := database.NormalizeName(name)
	if key == "" {
		return nil, types.ErrPlayerNameEmpty
	}
	if id == uuid.Nil {
		return nil, types.Errorf(types.ErrInvalidParameter, "nil player id for %q", name)
	}

	if err := p.caches.Names.Put(ctx, key, id); err != nil {
		return nil, err
	}

	server = database.NormalizeName(server)
	if server != "" {
		if _, err := p.servers.Connect(ctx, server); err != nil {
			return nil, err
		}
	}

	data, err := p.caches.Players.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data.RecordJoin(name, server, p.now())

	p.logger.Debug("Player joined",
		zap.String("player", name),
		zap.String("id", id.String()),
		zap.String("server", server))

	return data, nil
}

func (p *Players) Transfer(ctx context.Context, id uuid.UUID, server string) error {
	server = database.NormalizeName(server)
	if server == "" {
		return types.ErrServerNameEmpty
	}

	data, err := p.caches.Players.Get(ctx, id)
	if err != nil {
		return err
	}
	data.RecordTransfer(server, p.now())

	_, err = p.servers.Connect(ctx, server)
	return err
}

// Resolve maps a player name to its id. Names are case-insensitive.
func (p *Players) Resolve(ctx context.Context, name string) (uuid.UUID, error) {
	key := database.NormalizeName(name)
	if key == "" {
		return uuid.Nil, types.ErrPlayerNameEmpty
	}

	id, err := p.caches.Names.Get(ctx, key)
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, types.Errorf(types.ErrPlayerNotFound, "name: %s", name)
	}

	return id, nil
}

func (p *Players) SetOperator(ctx context.Context, name string, operator bool) error {
	id, err := p.Resolve(ctx, name)
	if err != nil {
		return err
	}

	data, err := p.caches.Players.Get(ctx, id)
	if err != nil {
		return err
	}
	data.SetAdmin(operator)

	p.logger.Info("Operator status changed",
		zap.String("player", name),
		zap.String("id", id.String()),
		zap.Bool("operator", operator))

	return nil
}

func (p *Players) IsOperator(ctx context.Context, id uuid.UUID) (bool, error) {
	data, err := p.caches.Players.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return data.IsAdmin(), nil
}
