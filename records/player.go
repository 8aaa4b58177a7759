package records

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// PlayerData is the per-player record. It is shared by every caller that
// fetched it from the cache and is mutated in place, so all access goes
// through the methods below.
type PlayerData struct {
	mu         sync.RWMutex
	admin      bool
	lastName   string
	lastServer string
	firstJoin  time.Time
	lastSeen   time.Time
	joins      int64
}

// PlayerSnapshot is the serialized form of PlayerData.
type PlayerSnapshot struct {
	Admin      bool      `json:"admin"`
	LastName   string    `json:"last_name,omitempty"`
	LastServer string    `json:"last_server,omitempty"`
	FirstJoin  time.Time `json:"first_join"`
	LastSeen   time.Time `json:"last_seen"`
	Joins      int64     `json:"joins"`
}

func NewPlayerData() *PlayerData {
	return &PlayerData{}
}

// RecordJoin marks a login under name on server at the given time.
func (p *PlayerData) RecordJoin(name, server string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.firstJoin.IsZero() {
		p.firstJoin = at
	}
	p.lastName = name
	p.lastServer = server
	p.lastSeen = at
	p.joins++
}

func (p *PlayerData) RecordTransfer(server string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastServer = server
	p.lastSeen = at
}

func (p *PlayerData) SetAdmin(admin bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.admin = admin
}

func (p *PlayerData) IsAdmin() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.admin
}

func (p *PlayerData) LastName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastName
}

func (p *PlayerData) LastServer() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastServer
}

func (p *PlayerData) Joins() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.joins
}

func (p *PlayerData) Snapshot() PlayerSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PlayerSnapshot{
		Admin:      p.admin,
		LastName:   p.lastName,
		LastServer: p.lastServer,
		FirstJoin:  p.firstJoin,
		LastSeen:   p.lastSeen,
		Joins:      p.joins,
	}
}

func (p *PlayerData) MarshalJSON() ([]byte, error) {
	return sonic.ConfigStd.Marshal(p.Snapshot())
}

func (p *PlayerData) UnmarshalJSON(data []byte) error {
	var s PlayerSnapshot
	if err := sonic.ConfigStd.Unmarshal(data, &s); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.admin = s.Admin
	p.lastName = s.LastName
	p.lastServer = s.LastServer
	p.firstJoin = s.FirstJoin
	p.lastSeen = s.LastSeen
	p.joins = s.Joins

	return nil
}
