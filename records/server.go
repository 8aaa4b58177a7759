package records

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// ServerData is the per-backend-server record.
type ServerData struct {
	mu          sync.RWMutex
	description string
	connections int64
	lastSeen    time.Time
	hub         bool
}

type ServerSnapshot struct {
	Description string    `json:"description,omitempty"`
	Connections int64     `json:"connections"`
	LastSeen    time.Time `json:"last_seen"`
	Hub         bool      `json:"hub"`
}

func NewServerData() *ServerData {
	return &ServerData{}
}

// RecordConnection counts one player connecting at the given time.
func (s *ServerData) RecordConnection(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections++
	s.lastSeen = at
}

func (s *ServerData) SetDescription(description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.description = description
}

func (s *ServerData) SetHub(hub bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hub = hub
}

func (s *ServerData) Connections() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connections
}

func (s *ServerData) IsHub() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub
}

func (s *ServerData) Snapshot() ServerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServerSnapshot{
		Description: s.description,
		Connections: s.connections,
		LastSeen:    s.lastSeen,
		Hub:         s.hub,
	}
}

func (s *ServerData) MarshalJSON() ([]byte, error) {
	return sonic.ConfigStd.Marshal(s.Snapshot())
}

func (s *ServerData) UnmarshalJSON(data []byte) error {
	var snap ServerSnapshot
	if err := sonic.ConfigStd.Unmarshal(data, &snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.description = snap.Description
	s.connections = snap.Connections
	s.lastSeen = snap.LastSeen
	s.hub = snap.Hub

	return nil
}
