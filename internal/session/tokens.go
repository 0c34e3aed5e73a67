package session

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoToken is returned by TokenStore.Load when nothing is persisted under the key.
var ErrNoToken = errors.New("session: no persisted token")

// TokenStore persists the opaque credential of a session and nothing else.
// Identity and role are always re-derived from the services.
type TokenStore interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, token string) error
	Delete(ctx context.Context, key string) error
}

// MemoryTokens keeps tokens for the lifetime of the process.
type MemoryTokens struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{tokens: make(map[string]string)}
}

func (m *MemoryTokens) Load(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.tokens[key]
	if !ok {
		return "", ErrNoToken
	}
	return tok, nil
}

func (m *MemoryTokens) Save(_ context.Context, key, token string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("session: empty token key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[key] = token
	return nil
}

func (m *MemoryTokens) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, key)
	return nil
}
